// Package value provides the scalar type stored in FSL variables.
// A scalar is an integer, a float, a string, or undefined.
package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindUndefined Kind = iota
	KindInt
	KindFloat
	KindString
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "undefined"
	}
}

var (
	// ErrDivisionByZero is returned by Div when the divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrTypeMismatch is returned when an operand is not numeric.
	ErrTypeMismatch = errors.New("unsupported operand type")
	// ErrOverflow is returned when integer arithmetic leaves the int64 range.
	ErrOverflow = errors.New("integer overflow")
)

// Value is a scalar. The zero Value is undefined.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Parse converts a literal into a Value.
// Integers are tried first, then floats; anything else is kept as a string.
// An integer literal outside the int64 range returns ErrOverflow instead of
// falling back to an inexact float.
// Variable references are not handled here.
func Parse(raw string) (Value, error) {
	if i, ok := ParseInt(raw); ok {
		return Int(i), nil
	}
	if IsIntLiteral(raw) {
		return Undefined(), fmt.Errorf("%w: integer literal %s out of range", ErrOverflow, raw)
	}
	if f, ok := ParseFloat(raw); ok {
		return Float(f), nil
	}
	return String(raw), nil
}

// IsIntLiteral reports whether raw is written as a base 10 integer
// (optional sign, digits, single underscores between digits), whether or
// not it fits in an int64.
func IsIntLiteral(raw string) bool {
	digits := strings.TrimLeft(raw, "+-")
	if len(raw)-len(digits) > 1 || digits == "" {
		return false
	}
	if _, ok := stripDigitSeparators(digits); !ok {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) && digits[i] != '_' {
			return false
		}
	}
	return true
}

// ParseInt parses a base 10 integer with an optional sign.
// Underscores may separate digits ("1_000").
func ParseInt(raw string) (int64, bool) {
	clean, ok := stripDigitSeparators(raw)
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// ParseFloat parses a decimal float. Underscores may separate digits.
// Hexadecimal float syntax is rejected.
func ParseFloat(raw string) (float64, bool) {
	if strings.ContainsAny(raw, "xX") {
		return 0, false
	}
	clean, ok := stripDigitSeparators(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		// strconv reports out of range values with ErrRange and a usable ±Inf
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// stripDigitSeparators removes underscores that sit between two digits.
// Any other underscore makes the literal invalid.
func stripDigitSeparators(raw string) (string, bool) {
	if !strings.Contains(raw, "_") {
		return raw, true
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '_' {
			continue
		}
		if i == 0 || i == len(raw)-1 || !isDigit(raw[i-1]) || !isDigit(raw[i+1]) {
			return "", false
		}
	}
	return strings.ReplaceAll(raw, "_", ""), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNumeric reports whether v is an int or a float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the numeric payload as a float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Truthy reports whether v counts as true.
// Zero numbers, the empty string and undefined are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	default:
		return false
	}
}

// Equal compares two values. An int and a float are equal when they denote
// the same number.
func (v Value) Equal(other Value) bool {
	if v.IsNumeric() && other.IsNumeric() {
		if v.kind == KindInt && other.kind == KindInt {
			return v.i == other.i
		}
		a, _ := v.AsFloat()
		b, _ := other.AsFloat()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	return v.s == other.s
}

// String returns the display form of v.
// Integral floats keep a trailing ".0" so they stay distinguishable from ints.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	default:
		return "undefined"
	}
}

// GoString is used by %#v.
func (v Value) GoString() string {
	return fmt.Sprintf("value.Value{%s: %q}", v.kind, v.String())
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
