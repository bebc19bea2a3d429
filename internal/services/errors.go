package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/billing-core/internal/validation"
	"gorm.io/gorm"
)

// ErrNotFound is returned (wrapped) when a bill, item, product or client does not exist
// for the acting owner.
var ErrNotFound = errors.New("not found")

// MsgEmptyBill is the message returned when a bill would end up without any item.
const MsgEmptyBill = "You must add at least one product or service to the bill."

// ValidationError aborts a save; nothing is persisted.
type ValidationError struct {
	Message string
	Fields  validation.Violations
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

func invalid(fields validation.Violations) error {
	return &ValidationError{Message: "validation failed", Fields: fields}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// notFound maps gorm.ErrRecordNotFound to ErrNotFound and wraps anything else.
func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}
