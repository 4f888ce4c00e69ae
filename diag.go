package teng

import "fmt"

// Severity classifies a diagnostic entry. Ordering matters only for
// display; the log itself never reorders or coalesces entries (spec
// invariant: exact content and order is part of the contract tests rely
// on).
type Severity int

const (
	// Diag is a hint attached to (and immediately preceding) a later
	// error, e.g. "You forgot write condition of the if statement".
	Diag Severity = iota
	Warning
	ErrorSeverity
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Diag:
		return "DIAG"
	case Warning:
		return "WARNING"
	case ErrorSeverity:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// DiagEntry is one append-only record in a Diagnostics log.
type DiagEntry struct {
	Severity Severity
	Pos      Position
	Message  string
}

func (e DiagEntry) String() string {
	return fmt.Sprintf("%s %s", e.Severity, e.Message)
}

// Diagnostics is the append-only log shared by the lexer, parser and VM.
// Every stage holds a reference to the same instance and appends to it;
// nothing is ever removed, merged or reordered. Compile-phase entries
// always precede VM-phase entries for a given page because the pipeline
// runs the phases strictly in sequence.
type Diagnostics struct {
	entries []DiagEntry
}

// NewDiagnostics returns an empty log ready to be shared across stages.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) append(sev Severity, pos Position, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	d.entries = append(d.entries, DiagEntry{Severity: sev, Pos: pos, Message: msg})
}

func (d *Diagnostics) Diagf(pos Position, format string, args ...any) {
	d.append(Diag, pos, format, args...)
}

func (d *Diagnostics) Warningf(pos Position, format string, args ...any) {
	d.append(Warning, pos, format, args...)
}

func (d *Diagnostics) Errorf(pos Position, format string, args ...any) {
	d.append(ErrorSeverity, pos, format, args...)
}

func (d *Diagnostics) Fatalf(pos Position, format string, args ...any) {
	d.append(Fatal, pos, format, args...)
}

// Entries returns the log in insertion order. The returned slice is owned
// by the caller's view; callers must not mutate it.
func (d *Diagnostics) Entries() []DiagEntry {
	return d.entries
}

// CountSeverity counts entries at or above the given severity.
func (d *Diagnostics) CountSeverity(min Severity) int {
	n := 0
	for _, e := range d.entries {
		if e.Severity >= min {
			n++
		}
	}
	return n
}

// HasFatal reports whether any FATAL entry was logged.
func (d *Diagnostics) HasFatal() bool {
	return d.CountSeverity(Fatal) > 0
}
