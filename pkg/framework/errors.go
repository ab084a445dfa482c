package framework

import "strings"

// MultiError collects the failures of several Runnables.
type MultiError struct {
	Errs []error
}

// Error implements error.
func (e *MultiError) Error() string {
	switch len(e.Errs) {
	case 0:
		return ""
	case 1:
		return e.Errs[0].Error()
	}
	msgs := make([]string, 0, len(e.Errs)+1)
	msgs = append(msgs, "multiple errors:")
	for _, err := range e.Errs {
		msgs = append(msgs, "  "+err.Error())
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *MultiError) Unwrap() []error {
	return e.Errs
}

// Add appends non-nil errors.
func (e *MultiError) Add(errs ...error) *MultiError {
	for _, err := range errs {
		if err != nil {
			e.Errs = append(e.Errs, err)
		}
	}
	return e
}

// ErrorOrNil returns nil when nothing was collected.
func (e *MultiError) ErrorOrNil() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e
}
