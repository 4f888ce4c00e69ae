package teng

// Version identifies this module's release line in diagnostics and CLI
// --version output.
const Version = "v1"

// Must panics if err is non-nil, for callers that treat a failed compile
// as a startup-time programming error rather than something to recover
// from:
//
//	prog, _, err := teng.CompileString("footer", footerSrc)
//	footer := teng.Must(prog, err)
func Must(prog *Program, err error) *Program {
	if err != nil {
		panic(err)
	}
	return prog
}

// CompileString lexes and parses body with teng's default options (html
// escaping, print-escape forms enabled) and no include support, useful
// for one-off templates that don't need an Engine's loader/cache/
// dictionary wiring.
func CompileString(name, body string) (*Program, *Diagnostics, error) {
	diag := NewDiagnostics()
	src := NewSource(name, body)
	prog := Parse(src, diag, ParseOptions{DefaultCType: "html"})
	if diag.HasFatal() {
		return prog, diag, newErrorf("compile", Position{}, name, "compilation produced a fatal diagnostic")
	}
	return prog, diag, nil
}
