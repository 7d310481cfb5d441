// Package vm provides the virtual machine for executing FSL scripts.
// It implements:
// - Loading parsed scripts into a shared variable store and function table
// - Value resolution for literals and #variable references
// - Block invocation with $parameter substitution
// - The built-in command set (create, update, delete, print, arithmetic)
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zurustar/fsl/pkg/logger"
	"github.com/zurustar/fsl/pkg/opcode"
	"github.com/zurustar/fsl/pkg/parser"
	"github.com/zurustar/fsl/pkg/value"
)

// DefaultMaxCallDepth is the default limit for nested block calls.
const DefaultMaxCallDepth = 1000

// VM is one interpreter instance. It owns the variable store and the
// function table; every script loaded into it shares them.
//
// A VM is not safe for concurrent execution.
type VM struct {
	store     *Store
	functions *FunctionTable

	// Call stack of block names, innermost last
	callStack    []string
	maxCallDepth int

	// Configuration
	out       io.Writer
	printZero bool
	strict    bool
	entry     string

	log *slog.Logger
}

// Source is a named script text.
type Source struct {
	Name string
	Text string
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithOutput sets the writer that print commands write to.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) {
		vm.out = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// WithMaxCallDepth sets the limit for nested block calls.
// Values below 1 are ignored.
func WithMaxCallDepth(depth int) Option {
	return func(vm *VM) {
		if depth > 0 {
			vm.maxCallDepth = depth
		}
	}
}

// WithPrintZero makes print show zero numbers instead of "undefined".
// By default every falsy value (0, 0.0, "", undefined) prints as "undefined".
func WithPrintZero(printZero bool) Option {
	return func(vm *VM) {
		vm.printZero = printZero
	}
}

// WithStrict makes parse diagnostics fail the script.
func WithStrict(strict bool) Option {
	return func(vm *VM) {
		vm.strict = strict
	}
}

// WithEntry sets the block run after each script is loaded.
func WithEntry(name string) Option {
	return func(vm *VM) {
		if name != "" {
			vm.entry = name
		}
	}
}

// New creates a new VM instance.
func New(opts ...Option) *VM {
	vm := &VM{
		store:        NewStore(),
		functions:    NewFunctionTable(),
		callStack:    make([]string, 0, 16),
		maxCallDepth: DefaultMaxCallDepth,
		out:          os.Stdout,
		entry:        opcode.EntryBlock,
		log:          logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(vm)
	}

	return vm
}

// Store returns the variable store.
func (vm *VM) Store() *Store {
	return vm.store
}

// Functions returns the function table.
func (vm *VM) Functions() *FunctionTable {
	return vm.functions
}

// CallDepth returns the number of blocks currently executing.
func (vm *VM) CallDepth() int {
	return len(vm.callStack)
}

// Parse parses a script and applies it to the VM state.
//
// Variable declarations are resolved in source order, so `#name` on the
// right-hand side sees the store as it is when the line is reached.
// Block definitions replace any block of the same name.
//
// Diagnostics are logged and the offending lines skipped. In strict mode a
// script with diagnostics is rejected as a whole and nothing is applied.
func (vm *VM) Parse(text string) error {
	script := parser.Parse(text)

	for _, d := range script.Diagnostics {
		vm.log.Warn("Invalid script line", "line", d.Line, "column", d.Column, "message", d.Message)
		vm.log.Debug("Script context", "context", d.Context)
	}

	if vm.strict && len(script.Diagnostics) > 0 {
		return &RuntimeError{
			Type:    ErrorParse,
			Message: fmt.Sprintf("%d parse error(s)", len(script.Diagnostics)),
			Line:    script.Diagnostics[0].Line,
			Err:     parser.DiagnosticsError(script.Diagnostics),
		}
	}

	vm.Load(script)
	return nil
}

// Load applies an already parsed script to the VM state.
func (vm *VM) Load(script *parser.Script) {
	for _, it := range script.Items {
		switch item := it.(type) {
		case *parser.VarDecl:
			v, err := vm.Resolve(item.Raw)
			if err != nil {
				vm.log.Warn("Invalid variable value", "name", item.Name, "line", item.Line, "error", err)
				continue
			}
			vm.store.Set(item.Name, v)
			vm.log.Debug("Variable declared", "name", item.Name, "value", v.String(), "line", item.Line)
		case *parser.BlockDef:
			if vm.functions.Has(item.Block.Name) {
				vm.log.Debug("Block redefined", "name", item.Block.Name, "line", item.Block.Line)
			}
			vm.functions.Define(item.Block)
			vm.log.Debug("Block defined", "name", item.Block.Name, "commands", len(item.Block.Commands))
		}
	}
}

// Resolve turns a raw field value into a scalar.
// `#name` reads the variable (undefined if missing); anything else is parsed
// as an int, then a float, and otherwise kept as a string.
// An integer literal outside the int64 range returns value.ErrOverflow.
func (vm *VM) Resolve(raw string) (value.Value, error) {
	if name, ok := strings.CutPrefix(raw, opcode.VariableSigil); ok {
		v, _ := vm.store.Get(name)
		return v, nil
	}
	return value.Parse(raw)
}

// RunScript loads one script and runs the entry block if it is defined.
// The entry block may come from an earlier script.
func (vm *VM) RunScript(ctx context.Context, src Source) error {
	vm.log.Info("Loading script", "name", src.Name, "size", len(src.Text))

	if err := vm.Parse(src.Text); err != nil {
		return fmt.Errorf("script %s: %w", src.Name, err)
	}

	if !vm.functions.Has(vm.entry) {
		vm.log.Debug("No entry block", "name", src.Name, "entry", vm.entry)
		return nil
	}

	if err := vm.RunFunction(ctx, opcode.VariableSigil+vm.entry, nil); err != nil {
		return fmt.Errorf("script %s: %w", src.Name, err)
	}
	return nil
}

// RunScripts runs scripts in order against the shared state.
// A failing script does not prevent later scripts from running; all
// failures are returned together. Cancellation stops the sequence.
func (vm *VM) RunScripts(ctx context.Context, scripts []Source) error {
	var errs []error
	for _, src := range scripts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, NewCancelledError(err))
			break
		}
		if err := vm.RunScript(ctx, src); err != nil {
			vm.log.Error("Script failed", "name", src.Name, "error", err)
			errs = append(errs, err)
			if IsErrorType(err, ErrorCancelled) {
				break
			}
		}
	}
	return errors.Join(errs...)
}
