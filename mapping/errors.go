package mapping

import (
	"fmt"
	"strings"
)

// DeclarationError is a fatal mapping-declaration error raised at
// registration time, before any query runs. It is never recovered from;
// callers are expected to fail startup.
type DeclarationError struct {
	Type    string
	Field   string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *DeclarationError) Error() string {
	var b strings.Builder

	if e.Type != "" {
		b.WriteString(e.Type)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

func declErr(typeName, field, format string, args ...any) *DeclarationError {
	return &DeclarationError{Type: typeName, Field: field, Message: fmt.Sprintf(format, args...)}
}
