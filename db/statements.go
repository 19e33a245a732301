package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is returned for table or column names that are not plain SQL identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column describes one column in CreateTable or AddColumn.
type Column struct {
	Name        string
	Type        string
	Constraints []string
}

// String renders the column definition, e.g. "id INTEGER PRIMARY KEY".
func (c Column) String() string {
	parts := []string{c.Name, c.Type}
	parts = append(parts, c.Constraints...)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func validateColumns(cols []Column) error {
	if len(cols) == 0 {
		return errors.New("at least one column is required")
	}
	for _, c := range cols {
		if err := validateIdentifier(c.Name); err != nil {
			return err
		}
		if strings.TrimSpace(c.Type) == "" {
			return fmt.Errorf("column %s: type is required", c.Name)
		}
	}
	return nil
}

// Statement templates. Values and conditions are passed through verbatim.

func createTableSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.String()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s);", table, strings.Join(defs, ", "))
}

func dropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", table)
}

func addColumnSQL(table string, col Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, col.String())
}

func insertRowSQL(table, values string) string {
	return fmt.Sprintf("INSERT INTO %s VALUES (%s);", table, values)
}

func deleteRowSQL(table, condition string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", table, condition)
}

func updateRowSQL(table, values, condition string) string {
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s;", table, values, condition)
}

func tableInfoSQL(table string) string {
	return fmt.Sprintf("PRAGMA table_info(%s);", table)
}
