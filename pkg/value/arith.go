package value

import (
	"fmt"
	"math"
)

// Op is a binary arithmetic operator.
type Op string

const (
	OpAdd      Op = "+"
	OpSubtract Op = "-"
	OpMultiply Op = "*"
	OpDivide   Op = "/"
)

// Add returns a + b.
func Add(a, b Value) (Value, error) { return Apply(OpAdd, a, b) }

// Sub returns a - b.
func Sub(a, b Value) (Value, error) { return Apply(OpSubtract, a, b) }

// Mul returns a * b.
func Mul(a, b Value) (Value, error) { return Apply(OpMultiply, a, b) }

// Div returns a / b. Division always produces a float.
func Div(a, b Value) (Value, error) { return Apply(OpDivide, a, b) }

// Apply evaluates a binary arithmetic operation.
//
// Two ints give an int (except for division), any float operand gives a float.
// Strings and undefined operands are rejected with ErrTypeMismatch.
func Apply(op Op, a, b Value) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Undefined(), fmt.Errorf("%w for %s: %s and %s", ErrTypeMismatch, op, a.kind, b.kind)
	}

	if op == OpDivide {
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		if y == 0 {
			return Undefined(), ErrDivisionByZero
		}
		return Float(x / y), nil
	}

	if a.kind == KindInt && b.kind == KindInt {
		return applyInt(op, a.i, b.i)
	}

	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	switch op {
	case OpAdd:
		return Float(x + y), nil
	case OpSubtract:
		return Float(x - y), nil
	case OpMultiply:
		return Float(x * y), nil
	}
	return Undefined(), fmt.Errorf("unknown operator %q", op)
}

func applyInt(op Op, x, y int64) (Value, error) {
	switch op {
	case OpAdd:
		r := x + y
		if (r > x) != (y > 0) {
			return Undefined(), fmt.Errorf("%w: %d + %d", ErrOverflow, x, y)
		}
		return Int(r), nil
	case OpSubtract:
		r := x - y
		if (r < x) != (y > 0) {
			return Undefined(), fmt.Errorf("%w: %d - %d", ErrOverflow, x, y)
		}
		return Int(r), nil
	case OpMultiply:
		if x == 0 || y == 0 {
			return Int(0), nil
		}
		r := x * y
		if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return Undefined(), fmt.Errorf("%w: %d * %d", ErrOverflow, x, y)
		}
		return Int(r), nil
	}
	return Undefined(), fmt.Errorf("unknown operator %q", op)
}
