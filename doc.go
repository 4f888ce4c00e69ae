// Package teng implements a two-phase template engine: a lexer+parser
// front-end that compiles template source into a flat bytecode program,
// and a stack-based virtual machine that executes that program against a
// caller-supplied fragment tree to produce output text plus an ordered
// diagnostic log.
//
// Templates embed directives of the form <?teng KW ...?> and three print
// forms: ${expr} (escaped), %{expr} (raw) and #{key} (dictionary lookup,
// raw). The expression language is C-like with Python-style ** and a
// case() expression form; see Lexer and Parser for the grammar and VM for
// execution semantics.
package teng
