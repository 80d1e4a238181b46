// File: trustpay/models/errors.go
package models

import "fmt"

// ValidationError signals malformed caller input (phone number, transaction
// fields). The operation is aborted with no partial state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
