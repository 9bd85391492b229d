package portal

import "fmt"

// ValidationError is an expected, user-facing denial. The Reason is the
// display string the portal shows; it is never treated as an operator
// failure. Reenter marks a controlled re-prompt back to token entry.
type ValidationError struct {
	Reason  string
	Reenter bool
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validation(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// IntegrityError is a fatal data-integrity violation between two
// identity sources. It is never resolved silently.
type IntegrityError struct {
	Participant string
	Local       string
	External    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("participant %s identity mismatch: local %q, roster %q", e.Participant, e.Local, e.External)
}
