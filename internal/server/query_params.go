package server

import (
	"strconv"
	"strings"
)

const maxPageSize = 100

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parsePageSize(value string) (int, error) {
	size, err := parseOptionalInt(value)
	if err != nil || (size != nil && (*size < 0 || *size > maxPageSize)) {
		return 0, newValidationError("page_size", "invalid_page_size", "page_size must be between 0 and 100")
	}
	if size == nil {
		return 0, nil
	}
	return *size, nil
}
