// Package parser implements the line-based parser for FSL scripts.
//
// Every non-blank line is classified as one of:
//
//	name: [            block header
//	]                  block terminator
//	key: raw, key: raw command line (inside a block)
//	key: value         variable declaration (outside a block)
//
// The parser does not touch interpreter state. It returns the declarations
// in source order so that the VM can apply them one after another.
package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/zurustar/fsl/pkg/opcode"
	"github.com/zurustar/fsl/pkg/value"
)

var (
	blockHeaderPattern = regexp.MustCompile(`:\s*\[$`)
	numericPattern     = regexp.MustCompile(`^[+-]?\.?[0-9]`)
)

// Item is a top-level declaration: *VarDecl or *BlockDef.
type Item interface {
	item()
	Pos() int
}

// VarDecl is a top-level `key: value` line. Raw is unresolved.
type VarDecl struct {
	Name string
	Raw  string
	Line int
}

// BlockDef is a `name: [ ... ]` block.
type BlockDef struct {
	Block *opcode.Block
}

func (*VarDecl) item()  {}
func (*BlockDef) item() {}

// Pos returns the source line of the declaration.
func (d *VarDecl) Pos() int { return d.Line }

// Pos returns the source line of the block header.
func (d *BlockDef) Pos() int { return d.Block.Line }

// Script is the result of parsing one script text.
type Script struct {
	Items       []Item
	Diagnostics []*Diagnostic
	Source      string
}

// Blocks returns the block definitions in source order.
func (s *Script) Blocks() []*opcode.Block {
	var blocks []*opcode.Block
	for _, it := range s.Items {
		if def, ok := it.(*BlockDef); ok {
			blocks = append(blocks, def.Block)
		}
	}
	return blocks
}

// Vars returns the variable declarations in source order.
func (s *Script) Vars() []*VarDecl {
	var vars []*VarDecl
	for _, it := range s.Items {
		if decl, ok := it.(*VarDecl); ok {
			vars = append(vars, decl)
		}
	}
	return vars
}

// Parser holds the state of a single parse.
type Parser struct {
	src     string
	script  *Script
	current *opcode.Block // nil at top level
	inBlock bool
}

// New creates a parser for src.
func New(src string) *Parser {
	return &Parser{
		src:    src,
		script: &Script{Source: src},
	}
}

// Parse parses src. It is shorthand for New(src).Parse().
func Parse(src string) *Script {
	return New(src).Parse()
}

// Parse runs the parser over the whole source.
func (p *Parser) Parse() *Script {
	lines := strings.Split(p.src, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lineNum := i + 1
		column := strings.Index(raw, line) + 1

		switch {
		case blockHeaderPattern.MatchString(line):
			p.openBlock(line, lineNum, column)
		case line == "]":
			p.closeBlock(lineNum, column)
		case p.inBlock:
			p.parseCommandLine(line, lineNum, column)
		default:
			p.parseVarLine(line, lineNum, column)
		}
	}

	if p.inBlock {
		name := "<unnamed>"
		line := 0
		if p.current != nil {
			name = p.current.Name
			line = p.current.Line
		}
		p.report("block "+name+" is not terminated with ]", line, 1)
	}

	return p.script
}

func (p *Parser) openBlock(line string, lineNum, column int) {
	name := strings.TrimSpace(line[:strings.Index(line, ":")])

	if p.inBlock {
		prev := "<unnamed>"
		if p.current != nil {
			prev = p.current.Name
		}
		p.report("block header inside block "+prev+"; nested blocks are not supported", lineNum, column)
	}

	p.inBlock = true
	if name == "" {
		// Commands up to the next ] are consumed and dropped.
		p.report("block header without a name", lineNum, column)
		p.current = nil
		return
	}

	p.current = &opcode.Block{Name: name, Line: lineNum}
	p.script.Items = append(p.script.Items, &BlockDef{Block: p.current})
}

func (p *Parser) closeBlock(lineNum, column int) {
	if !p.inBlock {
		p.report("unexpected ] outside of a block", lineNum, column)
		return
	}
	p.inBlock = false
	p.current = nil
}

// parseCommandLine splits a line on commas and records every `key: raw`
// segment. Segments without a colon are ignored.
func (p *Parser) parseCommandLine(line string, lineNum, column int) {
	cmd := ParseCommand(line, lineNum)
	if cmd.Len() == 0 {
		p.report("command line without any 'key: value' field", lineNum, column)
	}
	if p.current != nil {
		p.current.Commands = append(p.current.Commands, cmd)
	}
}

// ParseCommand parses a single command line into a record.
func ParseCommand(line string, lineNum int) *opcode.Command {
	cmd := opcode.NewCommand(lineNum)
	for _, part := range strings.Split(line, ",") {
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		cmd.Set(strings.TrimSpace(key), strings.TrimSpace(val))
	}
	return cmd
}

func (p *Parser) parseVarLine(line string, lineNum, column int) {
	key, val, ok := strings.Cut(line, ":")
	if !ok {
		p.report("missing ':' in variable declaration", lineNum, column)
		return
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	if key == "" {
		p.report("variable declaration without a name", lineNum, column)
		return
	}
	if !strings.HasPrefix(val, opcode.VariableSigil) && numericPattern.MatchString(val) {
		v, err := value.Parse(val)
		switch {
		case errors.Is(err, value.ErrOverflow):
			p.report("integer out of range for variable "+key+": "+val, lineNum, column)
			return
		case !v.IsNumeric():
			p.report("invalid value for variable "+key+": "+val, lineNum, column)
			return
		}
	}

	p.script.Items = append(p.script.Items, &VarDecl{Name: key, Raw: val, Line: lineNum})
}

func (p *Parser) report(message string, line, column int) {
	p.script.Diagnostics = append(p.script.Diagnostics, newDiagnostic(message, line, column, p.src))
}
