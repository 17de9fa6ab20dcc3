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

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
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

// AuditSessionSortFields contains allowed sort fields for audit sessions
var AuditSessionSortFields = map[string]bool{
	"created_at":             true,
	"updated_at":             true,
	"name":                   true,
	"status":                 true,
	"completed_at":           true,
	"expected_asset_count":   true,
	"found_asset_count":      true,
	"missing_asset_count":    true,
	"unexpected_asset_count": true,
}
