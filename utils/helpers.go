package utils

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"pushnami/api/apperr"
)

// ParseOptionalUUID parses a query value, returning nil for an empty string.
func ParseOptionalUUID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Invalid(field, fmt.Sprintf("%s must be a UUID", field))
	}
	return &id, nil
}

// ParseNonNegativeInt parses an optional integer query value, falling back to def.
func ParseNonNegativeInt(field, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(field, fmt.Sprintf("%s must be a non-negative integer", field))
	}
	return n, nil
}
