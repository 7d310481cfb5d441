// Package opcode defines the command records and the built-in instruction set
// of the FSL virtual machine.
// The parser produces Command records, and the VM executes them.
package opcode

import "strings"

// Cmd represents a built-in command keyword.
// A command whose keyword is not listed here is a call to a user block.
type Cmd string

// Built-in command keywords.
const (
	// Create stores a value in a variable.
	// Fields: id, value
	Create Cmd = "create"

	// Update stores a value in a variable. It behaves exactly like Create.
	// Fields: id, value
	Update Cmd = "update"

	// Delete removes a variable. Deleting a missing variable is a no-op.
	// Fields: id
	Delete Cmd = "delete"

	// Print writes the resolved value to the output.
	// Fields: value
	Print Cmd = "print"

	// Add, Subtract, Multiply and Divide store the result of a two-operand
	// arithmetic operation in a variable.
	// Fields: id, lhs, rhs (or any two operand fields in declaration order)
	Add      Cmd = "add"
	Subtract Cmd = "subtract"
	Multiply Cmd = "multiply"
	Divide   Cmd = "divide"
)

// Field names with a fixed meaning.
const (
	FieldCmd   = "cmd"
	FieldID    = "id"
	FieldValue = "value"
	FieldLHS   = "lhs"
	FieldRHS   = "rhs"
)

// Sigils that mark references in raw field values.
const (
	VariableSigil  = "#"
	ParameterSigil = "$"
)

// EntryBlock is the block run after every script load.
const EntryBlock = "init"

// IsArithmetic reports whether c is one of the arithmetic commands.
func (c Cmd) IsArithmetic() bool {
	switch c {
	case Add, Subtract, Multiply, Divide:
		return true
	}
	return false
}

// IsBuiltin reports whether c is a built-in keyword.
func (c Cmd) IsBuiltin() bool {
	switch c {
	case Create, Update, Delete, Print:
		return true
	}
	return c.IsArithmetic()
}

// Field is a single `name: value` pair of a command record.
type Field struct {
	Name  string
	Value string
}

// Command is one parsed instruction: an ordered list of fields.
// Values are kept raw; references are resolved at invocation time.
type Command struct {
	Fields []Field
	Line   int // source line, 0 when unknown
}

// NewCommand creates an empty command record.
func NewCommand(line int) *Command {
	return &Command{Line: line}
}

// Set assigns a field. An existing field keeps its position.
func (c *Command) Set(name, val string) {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			c.Fields[i].Value = val
			return
		}
	}
	c.Fields = append(c.Fields, Field{Name: name, Value: val})
}

// Get returns the raw value of a field.
func (c *Command) Get(name string) (string, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Lookup implements Params so that a command record can be passed as the
// parameter mapping of a block call.
func (c *Command) Lookup(name string) (string, bool) {
	return c.Get(name)
}

// Cmd returns the command keyword.
func (c *Command) Cmd() (Cmd, bool) {
	v, ok := c.Get(FieldCmd)
	return Cmd(v), ok
}

// Len returns the number of fields.
func (c *Command) Len() int {
	return len(c.Fields)
}

// Clone returns a deep copy of c.
func (c *Command) Clone() *Command {
	out := &Command{Line: c.Line, Fields: make([]Field, len(c.Fields))}
	copy(out.Fields, c.Fields)
	return out
}

// String renders the record back in script syntax.
func (c *Command) String() string {
	parts := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		parts[i] = f.Name + ": " + f.Value
	}
	return strings.Join(parts, ", ")
}

// Block is a named, ordered sequence of command records.
type Block struct {
	Name     string
	Commands []*Command
	Line     int
}

// Params supplies values for `$name` references inside a block.
type Params interface {
	Lookup(name string) (string, bool)
}

// ParamMap is a Params backed by a plain map.
type ParamMap map[string]string

// Lookup implements Params.
func (m ParamMap) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}
