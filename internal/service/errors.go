package service

import (
	"errors"
	"strings"
)

// ErrAIUnavailable is returned when the language model cannot answer
var ErrAIUnavailable = errors.New("AI model is unavailable")

// ValidationError reports caller input that cannot be processed
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return e.Reason + ": " + strings.Join(e.Fields, ", ")
}

// IsValidation reports whether err is caused by bad input
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
