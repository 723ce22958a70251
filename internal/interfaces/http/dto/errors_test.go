package dto

import (
	"net/http"
	"testing"

	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusForKind(t *testing.T) {
	tests := []struct {
		name     string
		kind     shared.ErrorKind
		expected int
	}{
		{"validation maps to 400", shared.KindValidation, http.StatusBadRequest},
		{"invalid state maps to 422", shared.KindInvalidState, http.StatusUnprocessableEntity},
		{"not found maps to 404", shared.KindNotFound, http.StatusNotFound},
		{"conflict maps to 409", shared.KindConflict, http.StatusConflict},
		{"consistency maps to 500", shared.KindConsistency, http.StatusInternalServerError},
		{"unknown kind maps to 500", shared.ErrorKind("??"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatusForKind(tt.kind))
		})
	}
}

func TestListRequest_Normalize(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		var req ListRequest
		req.Normalize()

		assert.Equal(t, 1, req.Page)
		assert.Equal(t, 20, req.PageSize)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		req := ListRequest{Page: 3, PageSize: 50}
		req.Normalize()

		assert.Equal(t, 3, req.Page)
		assert.Equal(t, 50, req.PageSize)
	})
}
