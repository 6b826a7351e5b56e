// Package secret holds configuration values that must never be printed.
package secret

import "database/sql/driver"

// String is a sensitive string such as a database password. Every printed or
// marshalled form is redacted; Raw is the only way to get at the value.
type String string

const redacted = "REDACTED"

// String implements fmt.Stringer and redacts the sensitive value.
func (s String) String() string {
	return redacted
}

// GoString implements fmt.GoStringer and redacts the sensitive value.
func (s String) GoString() string {
	return redacted
}

// Raw returns the sensitive value as a string.
func (s String) Raw() string {
	return string(s)
}

// Value lets a secret be passed directly as a query argument.
func (s String) Value() (driver.Value, error) {
	return string(s), nil
}

func (s String) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
