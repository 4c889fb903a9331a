package engine

import "fmt"

// ValidationError rejects bad input before any write happens.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ConflictError reports a uniqueness clash (email, username).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// StepError wraps a failure of one provisioning step, after any
// compensating cleanup ran.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
