package vm

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/zurustar/fsl/pkg/value"
)

// newTestVM creates a VM that writes print output to a buffer and discards logs.
func newTestVM(t *testing.T, opts ...Option) (*VM, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	base := []Option{
		WithOutput(out),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...), out
}

// outputLines splits print output into lines.
func outputLines(out *bytes.Buffer) []string {
	s := strings.TrimRight(out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// expectVar fails the test unless the variable holds want (same kind and value).
func expectVar(t *testing.T, vm *VM, name string, want value.Value) {
	t.Helper()
	got, ok := vm.Store().Get(name)
	if !ok {
		t.Fatalf("expected variable %s to exist", name)
	}
	if got.Kind() != want.Kind() || !got.Equal(want) {
		t.Errorf("variable %s: expected %#v, got %#v", name, want, got)
	}
}
