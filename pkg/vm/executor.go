// Package vm provides command execution for the FSL virtual machine.
package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zurustar/fsl/pkg/opcode"
	"github.com/zurustar/fsl/pkg/value"
)

// RunFunction invokes a block.
//
// The name must carry the variable sigil ("#init"); names without it and
// names that are not in the function table are silently ignored.
// Every command of the block is copied with `$name` fields replaced from
// params, then dispatched through RunCommand.
func (vm *VM) RunFunction(ctx context.Context, name string, params opcode.Params) error {
	key, ok := strings.CutPrefix(name, opcode.VariableSigil)
	if !ok {
		vm.log.Debug("Ignoring call without sigil", "name", name)
		return nil
	}

	block, ok := vm.functions.Lookup(key)
	if !ok {
		vm.log.Debug("Block not found", "name", key)
		return nil
	}

	if len(vm.callStack) >= vm.maxCallDepth {
		return NewRecursionLimitError(key, vm.maxCallDepth)
	}

	vm.callStack = append(vm.callStack, key)
	defer func() {
		vm.callStack = vm.callStack[:len(vm.callStack)-1]
	}()

	vm.log.Debug("Entering block", "name", key, "depth", len(vm.callStack))

	for _, cmd := range block.Commands {
		if err := ctx.Err(); err != nil {
			return annotate(NewCancelledError(err), key, cmd.Line)
		}
		if err := vm.RunCommand(ctx, substituteParams(cmd, params)); err != nil {
			return annotate(err, key, cmd.Line)
		}
	}

	return nil
}

// substituteParams returns a copy of cmd with every `$name` field replaced by
// the matching parameter. Missing parameters leave the literal `$name`.
func substituteParams(cmd *opcode.Command, params opcode.Params) *opcode.Command {
	resolved := cmd.Clone()
	if params == nil {
		return resolved
	}
	for i, f := range resolved.Fields {
		name, ok := strings.CutPrefix(f.Value, opcode.ParameterSigil)
		if !ok {
			continue
		}
		if v, found := params.Lookup(name); found {
			resolved.Fields[i].Value = v
		}
	}
	return resolved
}

// annotate attaches the block and line to a runtime error that has no
// location yet. Errors from nested calls keep their innermost location.
func annotate(err error, block string, line int) error {
	var rt *RuntimeError
	if errors.As(err, &rt) && rt.Block == "" {
		rt.Block = block
		if rt.Line == 0 {
			rt.Line = line
		}
	}
	return err
}

// RunCommand executes one command record whose parameters are already
// substituted.
//
// A keyword that is not built in calls the block of that name with the whole
// record as its parameters. The keyword is the bare block name: `cmd: f` runs
// block f, while `cmd: #f` looks up a block literally named "#f".
func (vm *VM) RunCommand(ctx context.Context, cmd *opcode.Command) error {
	keyword, ok := cmd.Cmd()
	if !ok {
		return NewMissingFieldError("", opcode.FieldCmd)
	}

	if !keyword.IsBuiltin() {
		name := string(keyword)
		if strings.HasPrefix(name, opcode.VariableSigil) && !vm.functions.Has(name) {
			vm.log.Debug("Block call keyword carries the sigil; use the bare block name",
				"cmd", name, "block", strings.TrimPrefix(name, opcode.VariableSigil))
		}
		return vm.RunFunction(ctx, opcode.VariableSigil+name, cmd)
	}

	switch keyword {
	case opcode.Create, opcode.Update:
		return vm.executeAssign(keyword, cmd)
	case opcode.Delete:
		return vm.executeDelete(cmd)
	case opcode.Print:
		return vm.executePrint(cmd)
	default:
		return vm.executeArithmetic(keyword, cmd)
	}
}

// requireField returns the raw value of a mandatory field.
func requireField(keyword opcode.Cmd, cmd *opcode.Command, field string) (string, error) {
	v, ok := cmd.Get(field)
	if !ok {
		return "", NewMissingFieldError(string(keyword), field)
	}
	return v, nil
}

// executeAssign handles create and update, which are identical.
func (vm *VM) executeAssign(keyword opcode.Cmd, cmd *opcode.Command) error {
	id, err := requireField(keyword, cmd, opcode.FieldID)
	if err != nil {
		return err
	}
	raw, err := requireField(keyword, cmd, opcode.FieldValue)
	if err != nil {
		return err
	}

	v, err := vm.Resolve(raw)
	if err != nil {
		return NewArithmeticError(string(keyword), err)
	}
	vm.store.Set(id, v)
	vm.log.Debug("Variable assigned", "cmd", keyword, "name", id, "value", v.String())
	return nil
}

// executeDelete removes a variable. Deleting a missing variable is a no-op.
func (vm *VM) executeDelete(cmd *opcode.Command) error {
	id, err := requireField(opcode.Delete, cmd, opcode.FieldID)
	if err != nil {
		return err
	}

	if vm.store.Delete(id) {
		vm.log.Debug("Variable deleted", "name", id)
	}
	return nil
}

// executePrint writes the resolved value followed by a newline.
// Falsy values print as "undefined"; with printZero set, zero numbers print
// as themselves.
func (vm *VM) executePrint(cmd *opcode.Command) error {
	raw, err := requireField(opcode.Print, cmd, opcode.FieldValue)
	if err != nil {
		return err
	}

	v, err := vm.Resolve(raw)
	if err != nil {
		return NewArithmeticError(string(opcode.Print), err)
	}
	text := "undefined"
	if v.Truthy() || (vm.printZero && v.IsNumeric()) {
		text = v.String()
	}

	if _, err := fmt.Fprintln(vm.out, text); err != nil {
		return &RuntimeError{Type: ErrorOutput, Message: "print failed", Err: err}
	}
	return nil
}

var arithmeticOps = map[opcode.Cmd]value.Op{
	opcode.Add:      value.OpAdd,
	opcode.Subtract: value.OpSubtract,
	opcode.Multiply: value.OpMultiply,
	opcode.Divide:   value.OpDivide,
}

// executeArithmetic evaluates lhs <op> rhs and stores the result in id.
func (vm *VM) executeArithmetic(keyword opcode.Cmd, cmd *opcode.Command) error {
	id, err := requireField(keyword, cmd, opcode.FieldID)
	if err != nil {
		return err
	}

	lhsRaw, rhsRaw, err := arithmeticOperands(keyword, cmd)
	if err != nil {
		return err
	}

	lhs, err := vm.Resolve(lhsRaw)
	if err != nil {
		return NewArithmeticError(string(keyword), err)
	}
	rhs, err := vm.Resolve(rhsRaw)
	if err != nil {
		return NewArithmeticError(string(keyword), err)
	}
	result, err := value.Apply(arithmeticOps[keyword], lhs, rhs)
	if err != nil {
		return NewArithmeticError(string(keyword), err)
	}

	vm.store.Set(id, result)
	vm.log.Debug("Arithmetic", "cmd", keyword, "name", id,
		"lhs", lhs.String(), "rhs", rhs.String(), "result", result.String())
	return nil
}

// arithmeticOperands picks the two operand fields of an arithmetic command.
// Named lhs/rhs fields win. Otherwise the record must have exactly two fields
// besides cmd and id, taken in declaration order.
func arithmeticOperands(keyword opcode.Cmd, cmd *opcode.Command) (string, string, error) {
	lhs, hasLHS := cmd.Get(opcode.FieldLHS)
	rhs, hasRHS := cmd.Get(opcode.FieldRHS)
	if hasLHS && hasRHS {
		return lhs, rhs, nil
	}

	var operands []string
	for _, f := range cmd.Fields {
		if f.Name == opcode.FieldCmd || f.Name == opcode.FieldID {
			continue
		}
		operands = append(operands, f.Value)
	}
	if len(operands) != 2 {
		return "", "", NewOperandCountError(string(keyword), len(operands))
	}
	return operands[0], operands[1], nil
}
