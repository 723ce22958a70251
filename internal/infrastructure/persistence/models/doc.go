// Package models contains the GORM persistence models and their
// conversions to and from domain entities. Domain aggregates stay free
// of storage tags; every table shape lives here.
package models
