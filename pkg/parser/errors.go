package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Diagnostic is a recoverable problem found while parsing a script.
// The parser never stops on a diagnostic; the offending line is skipped
// (or kept, depending on the problem) and parsing continues.
type Diagnostic struct {
	// Message is the human-readable description.
	Message string

	// Line is the 1-indexed line number.
	Line int

	// Column is the 1-indexed column number of the start of the line's content.
	Column int

	// Context contains the source around the line, with a pointer (^)
	// at Column.
	Context string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Context != "" {
		return fmt.Sprintf("parse error at line %d, column %d: %s\n%s",
			d.Line, d.Column, d.Message, d.Context)
	}
	return fmt.Sprintf("parse error at line %d, column %d: %s", d.Line, d.Column, d.Message)
}

// newDiagnostic creates a Diagnostic with source context.
func newDiagnostic(message string, line, column int, source string) *Diagnostic {
	return &Diagnostic{
		Message: message,
		Line:    line,
		Column:  column,
		Context: GenerateErrorContext(source, line, column),
	}
}

// DiagnosticsError joins diagnostics into a single error, or returns nil if
// there are none.
func DiagnosticsError(diags []*Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	errs := make([]error, len(diags))
	for i, d := range diags {
		errs[i] = d
	}
	return errors.Join(errs...)
}

// GenerateErrorContext generates source context around a line.
// It includes 2 lines before and 2 lines after the line, with line numbers
// and a pointer (^) indicating the column.
//
// Example output:
//
//	  2 | x: 1
//	  3 | f: [
//	> 4 | oops
//	    | ^
//	  5 | ]
func GenerateErrorContext(source string, line, column int) string {
	if source == "" || line <= 0 {
		return ""
	}

	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}

	start := line - 3
	if start < 0 {
		start = 0
	}
	end := line + 2
	if end > len(lines) {
		end = len(lines)
	}

	var buf strings.Builder
	lineNumWidth := len(fmt.Sprintf("%d", end))

	for i := start; i < end; i++ {
		lineNum := i + 1
		lineContent := strings.TrimRight(lines[i], "\r")

		if lineNum == line {
			fmt.Fprintf(&buf, "> %*d | %s\n", lineNumWidth, lineNum, lineContent)
			pointerIndent := 2 + lineNumWidth + 3
			if column > 0 {
				fmt.Fprintf(&buf, "%s%s^\n", strings.Repeat(" ", pointerIndent), strings.Repeat(" ", column-1))
			} else {
				fmt.Fprintf(&buf, "%s^\n", strings.Repeat(" ", pointerIndent))
			}
		} else {
			fmt.Fprintf(&buf, "  %*d | %s\n", lineNumWidth, lineNum, lineContent)
		}
	}

	return buf.String()
}
