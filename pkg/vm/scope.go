// Package vm provides the variable store and function table for the FSL
// virtual machine.
package vm

import (
	"sort"
	"sync"

	"github.com/zurustar/fsl/pkg/opcode"
	"github.com/zurustar/fsl/pkg/value"
)

// Store holds the variables of a VM. All scripts loaded into one VM share
// the same store.
type Store struct {
	variables map[string]value.Value
	mu        sync.RWMutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		variables: make(map[string]value.Value),
	}
}

// Get retrieves a variable. Missing variables yield the undefined value and false.
func (s *Store) Get(name string) (value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[name]
	return v, ok
}

// Set creates or overwrites a variable.
func (s *Store) Set(name string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = v
}

// Delete removes a variable.
//
// Returns:
//   - bool: true if the variable was deleted, false if it didn't exist
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.variables[name]; ok {
		delete(s.variables, name)
		return true
	}
	return false
}

// Has checks if a variable exists.
func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Keys returns all variable names in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.variables))
	for k := range s.variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of variables.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.variables)
}

// FunctionTable maps block names to their command sequences.
type FunctionTable struct {
	blocks map[string]*opcode.Block
	mu     sync.RWMutex
}

// NewFunctionTable creates an empty function table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{
		blocks: make(map[string]*opcode.Block),
	}
}

// Define installs a block, replacing any previous block of the same name.
func (t *FunctionTable) Define(block *opcode.Block) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocks[block.Name] = block
}

// Lookup returns the block with the given name.
func (t *FunctionTable) Lookup(name string) (*opcode.Block, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.blocks[name]
	return b, ok
}

// Has reports whether a block is defined.
func (t *FunctionTable) Has(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// Names returns all block names in sorted order.
func (t *FunctionTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.blocks))
	for n := range t.blocks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of defined blocks.
func (t *FunctionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.blocks)
}
