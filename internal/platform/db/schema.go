package db

import (
	"fmt"
	"regexp"
)

// DefaultSchema holds the comparison tables when neither --schema nor
// DB_SCHEMA names one.
const DefaultSchema = "reconciler"

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// ValidateSchema rejects schema names that cannot be interpolated into SQL
// as a bare identifier.
func ValidateSchema(name string) error {
	if !schemaPattern.MatchString(name) {
		return fmt.Errorf("invalid schema identifier: %q", name)
	}
	return nil
}
