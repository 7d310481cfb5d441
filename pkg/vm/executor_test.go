package vm

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/zurustar/fsl/pkg/opcode"
	"github.com/zurustar/fsl/pkg/parser"
	"github.com/zurustar/fsl/pkg/value"
)

// command builds a record from alternating name/value pairs.
func command(pairs ...string) *opcode.Command {
	c := opcode.NewCommand(0)
	for i := 0; i+1 < len(pairs); i += 2 {
		c.Set(pairs[i], pairs[i+1])
	}
	return c
}

func TestResolve(t *testing.T) {
	vm, _ := newTestVM(t)
	vm.Store().Set("x", value.Int(5))

	tests := []struct {
		name string
		raw  string
		want value.Value
	}{
		{"variable reference", "#x", value.Int(5)},
		{"missing reference", "#nope", value.Undefined()},
		{"integer", "12", value.Int(12)},
		{"float", "1.5", value.Float(1.5)},
		{"string", "hello", value.String("hello")},
		{"parameter sigil is a plain string here", "$p", value.String("$p")},
		{"digit separators", "1_000", value.Int(1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vm.Resolve(tt.raw)
			if err != nil {
				t.Fatalf("Resolve(%q) returned error: %v", tt.raw, err)
			}
			if got.Kind() != tt.want.Kind() || !got.Equal(tt.want) {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRunCommand_CreateUpdate(t *testing.T) {
	ctx := context.Background()
	vm, _ := newTestVM(t)

	if err := vm.RunCommand(ctx, command("cmd", "create", "id", "x", "value", "1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	expectVar(t, vm, "x", value.Int(1))

	if err := vm.RunCommand(ctx, command("cmd", "update", "id", "x", "value", "2")); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	expectVar(t, vm, "x", value.Int(2))

	if err := vm.RunCommand(ctx, command("cmd", "create", "id", "y", "value", "#x")); err != nil {
		t.Fatalf("create from reference failed: %v", err)
	}
	expectVar(t, vm, "y", value.Int(2))

	// update on a missing variable creates it
	if err := vm.RunCommand(ctx, command("cmd", "update", "id", "fresh", "value", "text")); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	expectVar(t, vm, "fresh", value.String("text"))
}

func TestRunCommand_Delete(t *testing.T) {
	ctx := context.Background()
	vm, _ := newTestVM(t)
	vm.Store().Set("x", value.Int(1))

	for i := 0; i < 2; i++ {
		if err := vm.RunCommand(ctx, command("cmd", "delete", "id", "x")); err != nil {
			t.Fatalf("delete #%d failed: %v", i+1, err)
		}
	}
	if vm.Store().Has("x") {
		t.Error("expected x to be deleted")
	}
}

func TestRunCommand_Print(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		printZero bool
		want      string
	}{
		{"integer variable", "#x", false, "5"},
		{"missing variable", "#missing", false, "undefined"},
		{"literal string", "hello", false, "hello"},
		{"zero prints undefined", "0", false, "undefined"},
		{"float zero prints undefined", "0.0", false, "undefined"},
		{"zero with printZero", "0", true, "0"},
		{"float zero with printZero", "0.0", true, "0.0"},
		{"missing with printZero", "#missing", true, "undefined"},
		{"float", "2.5", false, "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, out := newTestVM(t, WithPrintZero(tt.printZero))
			vm.Store().Set("x", value.Int(5))

			if err := vm.RunCommand(context.Background(), command("cmd", "print", "value", tt.raw)); err != nil {
				t.Fatalf("print failed: %v", err)
			}
			if got := out.String(); got != tt.want+"\n" {
				t.Errorf("expected %q, got %q", tt.want+"\n", got)
			}
		})
	}
}

func TestRunCommand_Arithmetic(t *testing.T) {
	tests := []struct {
		name string
		cmd  *opcode.Command
		want value.Value
	}{
		{"add", command("cmd", "add", "id", "z", "a", "2", "b", "3"), value.Int(5)},
		{"subtract keeps declaration order", command("cmd", "subtract", "id", "z", "b", "10", "a", "4"), value.Int(6)},
		{"multiply", command("cmd", "multiply", "id", "z", "a", "4", "b", "2.5"), value.Float(10)},
		{"divide", command("cmd", "divide", "id", "z", "a", "9", "b", "2"), value.Float(4.5)},
		{"named operands", command("cmd", "subtract", "rhs", "4", "id", "z", "lhs", "10"), value.Int(6)},
		{"named operands ignore extra fields", command("cmd", "add", "id", "z", "note", "x", "lhs", "1", "rhs", "2"), value.Int(3)},
		{"references", command("cmd", "add", "id", "z", "a", "#x", "b", "#x"), value.Int(14)},
		{"id before cmd", command("id", "z", "cmd", "add", "a", "1", "b", "1"), value.Int(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, _ := newTestVM(t)
			vm.Store().Set("x", value.Int(7))

			if err := vm.RunCommand(context.Background(), tt.cmd); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expectVar(t, vm, "z", tt.want)
		})
	}
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *opcode.Command
		wantType ErrorType
		wantErr  error
	}{
		{"divide by zero", command("cmd", "divide", "id", "z", "a", "4", "b", "0"), ErrorArithmetic, value.ErrDivisionByZero},
		{"string operand", command("cmd", "add", "id", "z", "a", "x", "b", "1"), ErrorArithmetic, value.ErrTypeMismatch},
		{"undefined operand", command("cmd", "add", "id", "z", "a", "#nope", "b", "1"), ErrorArithmetic, value.ErrTypeMismatch},
		{"create with out of range integer", command("cmd", "create", "id", "z", "value", "99999999999999999999"), ErrorArithmetic, value.ErrOverflow},
		{"print out of range integer", command("cmd", "print", "value", "12345678901234567891"), ErrorArithmetic, value.ErrOverflow},
		{"out of range operand", command("cmd", "add", "id", "z", "a", "12345678901234567891", "b", "1"), ErrorArithmetic, value.ErrOverflow},
		{"missing cmd", command("id", "z"), ErrorMalformedCommand, nil},
		{"create without id", command("cmd", "create", "value", "1"), ErrorMalformedCommand, nil},
		{"create without value", command("cmd", "create", "id", "x"), ErrorMalformedCommand, nil},
		{"delete without id", command("cmd", "delete"), ErrorMalformedCommand, nil},
		{"print without value", command("cmd", "print"), ErrorMalformedCommand, nil},
		{"arithmetic without id", command("cmd", "add", "a", "1", "b", "2"), ErrorMalformedCommand, nil},
		{"one operand", command("cmd", "add", "id", "z", "a", "1"), ErrorMalformedCommand, nil},
		{"three operands", command("cmd", "add", "id", "z", "a", "1", "b", "2", "c", "3"), ErrorMalformedCommand, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, _ := newTestVM(t)
			err := vm.RunCommand(context.Background(), tt.cmd)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !IsErrorType(err, tt.wantType) {
				t.Errorf("expected %s, got %v", tt.wantType, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain, got %v", tt.wantErr, err)
			}
			if vm.Store().Has("z") {
				t.Error("failed command must not store a result")
			}
		})
	}
}

func TestRunFunction(t *testing.T) {
	t.Run("requires the sigil", func(t *testing.T) {
		vm, out := newTestVM(t)
		vm.Load(parser.Parse("f: [\ncmd: print, value: hi\n]"))

		if err := vm.RunFunction(context.Background(), "f", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("expected no output, got %q", out.String())
		}
	})

	t.Run("missing block is a no-op", func(t *testing.T) {
		vm, out := newTestVM(t)
		if err := vm.RunFunction(context.Background(), "#nothing", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("expected no output, got %q", out.String())
		}
	})

	t.Run("prints variable round trip", func(t *testing.T) {
		vm, out := newTestVM(t)
		vm.Load(parser.Parse("f: [\ncmd: print, value: #x\n]"))

		if err := vm.RunFunction(context.Background(), "#f", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vm.Store().Set("x", value.Int(5))
		if err := vm.RunFunction(context.Background(), "#f", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := outputLines(out)
		if len(lines) != 2 || lines[0] != "undefined" || lines[1] != "5" {
			t.Errorf("unexpected output %q", lines)
		}
	})

	t.Run("commands run in order", func(t *testing.T) {
		vm, out := newTestVM(t)
		vm.Load(parser.Parse(`
f: [
  cmd: create, id: x, value: 1
  cmd: print, value: #x
  cmd: update, id: x, value: 2
  cmd: print, value: #x
  cmd: delete, id: x
  cmd: print, value: #x
]`))

		if err := vm.RunFunction(context.Background(), "#f", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := outputLines(out)
		want := []string{"1", "2", "undefined"}
		if len(lines) != len(want) {
			t.Fatalf("expected %v, got %v", want, lines)
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
			}
		}
	})

	t.Run("error carries block and line", func(t *testing.T) {
		vm, _ := newTestVM(t)
		vm.Load(parser.Parse("f: [\ncmd: print, value: 1\ncmd: divide, id: z, a: 1, b: 0\n]"))

		err := vm.RunFunction(context.Background(), "#f", nil)
		var rt *RuntimeError
		if !errors.As(err, &rt) {
			t.Fatalf("expected RuntimeError, got %v", err)
		}
		if rt.Block != "f" || rt.Line != 3 {
			t.Errorf("expected block f line 3, got %s line %d", rt.Block, rt.Line)
		}
	})

	t.Run("error stops the block", func(t *testing.T) {
		vm, out := newTestVM(t)
		vm.Load(parser.Parse("f: [\ncmd: create, id: a\ncmd: print, value: after\n]"))

		if err := vm.RunFunction(context.Background(), "#f", nil); err == nil {
			t.Fatal("expected an error")
		}
		if out.Len() != 0 {
			t.Errorf("expected no output after the failure, got %q", out.String())
		}
	})
}

func TestRunFunction_Parameters(t *testing.T) {
	src := "setOut: [\ncmd: create, id: out, value: $p\n]"

	t.Run("parameter supplied", func(t *testing.T) {
		vm, _ := newTestVM(t)
		vm.Load(parser.Parse(src))
		if err := vm.RunFunction(context.Background(), "#setOut", opcode.ParamMap{"p": "7"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectVar(t, vm, "out", value.Int(7))
	})

	t.Run("parameter missing degrades to literal", func(t *testing.T) {
		vm, _ := newTestVM(t)
		vm.Load(parser.Parse(src))
		if err := vm.RunFunction(context.Background(), "#setOut", opcode.ParamMap{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectVar(t, vm, "out", value.String("$p"))
	})

	t.Run("nil parameters", func(t *testing.T) {
		vm, _ := newTestVM(t)
		vm.Load(parser.Parse(src))
		if err := vm.RunFunction(context.Background(), "#setOut", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectVar(t, vm, "out", value.String("$p"))
	})

	t.Run("parameter holding a reference resolves in the callee", func(t *testing.T) {
		vm, _ := newTestVM(t)
		vm.Load(parser.Parse(src))
		vm.Store().Set("x", value.Float(1.5))
		if err := vm.RunFunction(context.Background(), "#setOut", opcode.ParamMap{"p": "#x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectVar(t, vm, "out", value.Float(1.5))
	})

	t.Run("stored records are not modified", func(t *testing.T) {
		vm, _ := newTestVM(t)
		vm.Load(parser.Parse(src))
		if err := vm.RunFunction(context.Background(), "#setOut", opcode.ParamMap{"p": "7"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		block, _ := vm.Functions().Lookup("setOut")
		if v, _ := block.Commands[0].Get("value"); v != "$p" {
			t.Errorf("expected stored value $p, got %q", v)
		}
	})
}

func TestRunCommand_UserBlockCall(t *testing.T) {
	vm, out := newTestVM(t)
	vm.Load(parser.Parse(`
greet: [
  cmd: print, value: $name
  cmd: add, id: total, lhs: $a, rhs: $b
]
`))

	err := vm.RunCommand(context.Background(), command("cmd", "greet", "name", "world", "a", "2", "b", "3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "world\n" {
		t.Errorf("expected world, got %q", out.String())
	}
	expectVar(t, vm, "total", value.Int(5))
}

func TestRunCommand_UnknownKeywordWithoutBlock(t *testing.T) {
	vm, out := newTestVM(t)
	if err := vm.RunCommand(context.Background(), command("cmd", "nosuchblock", "x", "1")); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if out.Len() != 0 || vm.Store().Size() != 0 {
		t.Error("expected no side effects")
	}
}

func TestRunCommand_SigilKeywordIsNotACall(t *testing.T) {
	var logs bytes.Buffer
	vm, out := newTestVM(t, WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	vm.Load(parser.Parse("greet: [\ncmd: print, value: hi\n]"))

	if err := vm.RunCommand(context.Background(), command("cmd", "#greet")); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("`cmd: #greet` must not run block greet, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "use the bare block name") || !strings.Contains(logs.String(), "block=greet") {
		t.Errorf("expected a debug hint about the sigil, got %q", logs.String())
	}

	if err := vm.RunCommand(context.Background(), command("cmd", "greet")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "hi\n" {
		t.Errorf("expected bare name to call the block, got %q", out.String())
	}
}

func TestRunFunction_Recursion(t *testing.T) {
	t.Run("unbounded recursion is reported", func(t *testing.T) {
		vm, _ := newTestVM(t, WithMaxCallDepth(50))
		vm.Load(parser.Parse("loop: [\ncmd: loop\n]"))

		err := vm.RunFunction(context.Background(), "#loop", nil)
		if !IsErrorType(err, ErrorRecursionLimit) {
			t.Fatalf("expected recursion limit error, got %v", err)
		}
		if vm.CallDepth() != 0 {
			t.Errorf("expected call stack to unwind, depth %d", vm.CallDepth())
		}
	})

	t.Run("bounded recursion within the limit", func(t *testing.T) {
		vm, _ := newTestVM(t, WithMaxCallDepth(3))
		vm.Load(parser.Parse("a: [\ncmd: b\n]\nb: [\ncmd: c\n]\nc: [\ncmd: create, id: done, value: 1\n]"))

		if err := vm.RunFunction(context.Background(), "#a", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectVar(t, vm, "done", value.Int(1))
	})

	t.Run("one call over the limit", func(t *testing.T) {
		vm, _ := newTestVM(t, WithMaxCallDepth(2))
		vm.Load(parser.Parse("a: [\ncmd: b\n]\nb: [\ncmd: c\n]\nc: [\ncmd: create, id: done, value: 1\n]"))

		err := vm.RunFunction(context.Background(), "#a", nil)
		if !IsErrorType(err, ErrorRecursionLimit) {
			t.Fatalf("expected recursion limit error, got %v", err)
		}
		if vm.Store().Has("done") {
			t.Error("innermost block must not run")
		}
	})
}

func TestRunFunction_Cancelled(t *testing.T) {
	vm, out := newTestVM(t)
	vm.Load(parser.Parse("f: [\ncmd: print, value: 1\n]"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := vm.RunFunction(ctx, "#f", nil)
	if !IsErrorType(err, ErrorCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}
