package challenge

import "strings"

// ValidationError reports bad caller input. Nothing is sent upstream when it occurs.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}
