package teng

import (
	"fmt"
	"strings"

	"github.com/kr/pretty"
)

// Disassemble renders a Program's instructions as a human-readable
// listing, one instruction per line with its address, used by the
// "teng check" CLI subcommand and by tests asserting on compiled shape
// without pinning down exact Instruction struct layout.
func Disassemble(p *Program) string {
	var sb strings.Builder
	for i, ins := range p.Code {
		fmt.Fprintf(&sb, "%4d  %s\n", i, ins.String())
	}
	return sb.String()
}

// DumpDiagnostics formats a Diagnostics log for CLI/log output, one
// entry per line prefixed with its severity and source position.
func DumpDiagnostics(d *Diagnostics) string {
	var sb strings.Builder
	for _, e := range d.Entries() {
		fmt.Fprintf(&sb, "%s %d:%d %s\n", e.Severity, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return sb.String()
}

// DumpValue pretty-prints a Value's internal shape for debugging,
// delegating to kr/pretty.
func DumpValue(v Value) string {
	return fmt.Sprintf("%# v", pretty.Formatter(v))
}
