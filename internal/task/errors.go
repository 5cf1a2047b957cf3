package task

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("task not found")

// ValidationError rejects input to Add. No state changes when it is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}
