package common

import (
	"strconv"
	"strings"
)

// AtoiDefault converts the provided string to an integer falling back to the default when it is blank.
// Unparseable input is reported as an error.
func AtoiDefault(value string, def int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
