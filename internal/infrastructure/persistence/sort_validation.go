package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed
// fields. Returns the defaultField if the input is invalid, empty, or not
// in the whitelist. Order-by clauses are string-concatenated into SQL, so
// everything passes through here first.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// StaySortFields contains allowed sort fields for stays
var StaySortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"unit_label":  true,
	"tenant_name": true,
	"date_from":   true,
	"date_to":     true,
	"rent_amount": true,
	"status":      true,
}

// ChargeSortFields contains allowed sort fields for charges
var ChargeSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"period":           true,
	"kind":             true,
	"amount":           true,
	"allocated_amount": true,
	"status":           true,
	"source":           true,
}

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"paid_at":            true,
	"total_amount":       true,
	"unallocated_amount": true,
	"status":             true,
	"kind":               true,
	"provenance":         true,
}

// ReceiptSortFields contains allowed sort fields for receipts
var ReceiptSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"decision":   true,
}

// ProviderSortFields contains allowed sort fields for utility providers
var ProviderSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"name":         true,
	"service_type": true,
	"active":       true,
}
