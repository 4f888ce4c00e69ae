package teng

import (
	"strconv"
	"strings"
)

// Lexer tokenizes template source. It alternates between text mode
// (outside any directive or print form) and expression mode (inside
// <?teng ...?>, ${...}, %{...} or #{...}). Because the whole program is
// compiled before execution begins (spec: no streaming parse of huge
// templates), the lexer runs eagerly over the whole Source and returns
// the complete token slice; mode-switching is still driven by the
// directive/print delimiters exactly as if the parser were pushing mode
// per token, since those delimiters are the only thing that ever changes
// the mode.
type Lexer struct {
	src  *Source
	diag *Diagnostics

	noPrintEscape bool

	pos        int // byte offset into src.Text
	line, col  int // 1-based, Unicode-character counted
	lastNonTrivial TokenType // used for regex/division disambiguation
	lastVal        string    // spelling of lastNonTrivial, to tell ")" and "]" apart
	haveLast       bool
}

// NewLexer creates a lexer over src. diag receives lexical diagnostics
// (a WARNING for invalid UTF-8, an ERROR for unterminated comments) as
// they occur. noPrintEscape
// mirrors the "no-print-escape" configuration key (spec §4.8/§6): when
// true, "%{" and "#{" are never recognized as directive openers and pass
// through as ordinary text.
func NewLexer(src *Source, diag *Diagnostics, noPrintEscape bool) *Lexer {
	return &Lexer{src: src, diag: diag, noPrintEscape: noPrintEscape, line: 1, col: 1}
}

// Lex tokenizes the entire source and returns the token stream, always
// terminated by a TokEOF token.
func (l *Lexer) Lex() []*Token {
	var toks []*Token
	for {
		t := l.nextTextChunkOrOpener()
		if t != nil {
			toks = append(toks, t)
		}
		if l.pos >= len(l.src.Text) {
			break
		}
		if t.Typ == TokText {
			// The text run stopped at an opener; the next call returns it.
			continue
		}
		// We're positioned right after an opener; consume expression-mode
		// tokens until the matching closer.
		opener := toks[len(toks)-1]
		closerTyp := l.closerFor(opener.Typ)
		toks = append(toks, l.lexExpressionUntil(closerTyp)...)
	}
	toks = append(toks, &Token{Typ: TokEOF, Pos: Position{Line: l.line, Column: l.col}})
	return toks
}

func (l *Lexer) closerFor(opener TokenType) TokenType {
	if opener == TokDirectiveOpen {
		return TokDirectiveClose
	}
	return TokShortClose
}

// nextTextChunkOrOpener scans text mode: it accumulates raw text until it
// finds one of the directive/print openers (respecting noPrintEscape). It
// returns exactly one token: the accumulated TEXT (leaving the cursor at
// the opener) when there is any, otherwise the opener itself, or nil at
// the end of the source.
func (l *Lexer) nextTextChunkOrOpener() *Token {
	startLine, startCol, startPos := l.line, l.col, l.pos
	for l.pos < len(l.src.Text) {
		if l.atOpener() {
			if l.pos > startPos {
				// Flush pending text first; the opener is returned by
				// the next call.
				return &Token{Typ: TokText, Val: l.src.Text[startPos:l.pos], Pos: Position{Line: startLine, Column: startCol}}
			}
			return l.consumeOpener()
		}
		l.advanceRune()
	}
	if l.pos > startPos {
		return &Token{Typ: TokText, Val: l.src.Text[startPos:l.pos], Pos: Position{Line: startLine, Column: startCol}}
	}
	return nil
}

func (l *Lexer) atOpener() bool {
	rest := l.src.Text[l.pos:]
	if strings.HasPrefix(rest, "<?teng") {
		return true
	}
	if strings.HasPrefix(rest, "${") {
		return true
	}
	if !l.noPrintEscape {
		if strings.HasPrefix(rest, "%{") || strings.HasPrefix(rest, "#{") {
			return true
		}
	}
	return false
}

func (l *Lexer) consumeOpener() *Token {
	pos := Position{Line: l.line, Column: l.col}
	rest := l.src.Text[l.pos:]
	switch {
	case strings.HasPrefix(rest, "<?teng"):
		l.advanceN(len("<?teng"))
		return &Token{Typ: TokDirectiveOpen, Val: "<?teng", Pos: pos}
	case strings.HasPrefix(rest, "${"):
		l.advanceN(2)
		return &Token{Typ: TokPrintOpen, Val: "${", Pos: pos}
	case strings.HasPrefix(rest, "%{"):
		l.advanceN(2)
		return &Token{Typ: TokPrintRawOpen, Val: "%{", Pos: pos}
	case strings.HasPrefix(rest, "#{"):
		l.advanceN(2)
		return &Token{Typ: TokDictOpen, Val: "#{", Pos: pos}
	}
	panic("consumeOpener called without an opener at cursor")
}

// advanceRune consumes exactly one rune, updating line/col bookkeeping
// and warning on invalid UTF-8 per spec §2/§4.1.
func (l *Lexer) advanceRune() (rune, bool) {
	r, width, ok := l.src.decodeRune(l.pos)
	if width == 0 {
		return -1, false
	}
	if !ok {
		l.diag.Warningf(Position{Line: l.line, Column: l.col}, "Invalid UTF-8 byte in source, treating as one column")
	}
	l.pos += width
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r, true
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advanceRune()
	}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src.Text) {
		return 0
	}
	return l.src.Text[l.pos]
}

func (l *Lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.src.Text[l.pos:], s)
}

// expectOperand reports whether, given the previously emitted
// non-trivial token, the next "/" should begin a regex literal (true) or
// be treated as division (false). Division follows an identifier, a
// number, a string or regex literal, ")" or "]"; everything else
// (including "no previous token", i.e. the start of the directive/print
// body) expects an operand, so "/" there begins a regex.
func (l *Lexer) expectOperand() bool {
	if !l.haveLast {
		return true
	}
	switch l.lastNonTrivial {
	case TokIdent, TokInt, TokFloat, TokString, TokRegex:
		return false
	case TokSymbol:
		return l.lastVal != ")" && l.lastVal != "]"
	}
	return true
}

// lexExpressionUntil tokenizes expression-mode content until it consumes
// a token of type closerTyp (inclusive), or runs out of input.
func (l *Lexer) lexExpressionUntil(closerTyp TokenType) []*Token {
	var toks []*Token
	for l.pos < len(l.src.Text) {
		l.skipSpacesAndComments()
		if l.pos >= len(l.src.Text) {
			break
		}

		pos := Position{Line: l.line, Column: l.col}

		// Closing delimiters.
		if closerTyp == TokDirectiveClose && l.hasPrefix("?>") {
			l.advanceN(2)
			tok := &Token{Typ: TokDirectiveClose, Val: "?>", Pos: pos}
			toks = append(toks, tok)
			l.lastNonTrivial, l.haveLast = tok.Typ, true
			return toks
		}
		if closerTyp == TokShortClose && l.peekByte() == '}' {
			l.advanceRune()
			tok := &Token{Typ: TokShortClose, Val: "}", Pos: pos}
			toks = append(toks, tok)
			l.lastNonTrivial, l.haveLast = tok.Typ, true
			return toks
		}

		c := l.peekByte()
		switch {
		case isIdentStart(c):
			tok := l.lexIdentOrKeyword(pos)
			toks = append(toks, tok)
		case isDigit(c):
			tok := l.lexNumber(pos)
			toks = append(toks, tok)
		case c == '"' || c == '\'':
			tok := l.lexString(pos)
			toks = append(toks, tok)
		case c == '/' && l.expectOperand():
			tok := l.lexRegex(pos)
			toks = append(toks, tok)
		default:
			tok := l.lexSymbol(pos)
			if tok == nil {
				l.diag.Errorf(pos, "Unexpected character %q in expression", string(c))
				l.advanceRune()
				continue
			}
			toks = append(toks, tok)
		}
		if len(toks) > 0 {
			last := toks[len(toks)-1]
			l.lastNonTrivial, l.haveLast = last.Typ, true
			l.lastVal = last.Val
		}
	}
	return toks
}

func (l *Lexer) skipSpacesAndComments() {
	for l.pos < len(l.src.Text) {
		c := l.peekByte()
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.advanceRune()
			continue
		}
		if l.hasPrefix("/*") {
			l.skipComment()
			continue
		}
		return
	}
}

// skipComment consumes a /* ... */ comment. If it isn't closed before EOF,
// it logs an ERROR and leaves the cursor at EOF; the caller's expression
// loop will then simply run out of input. No token is emitted for the
// unterminated comment: everything from "/*" to EOF is dropped.
func (l *Lexer) skipComment() {
	startPos := Position{Line: l.line, Column: l.col}
	l.advanceN(2) // consume "/*"
	for l.pos < len(l.src.Text) {
		if l.hasPrefix("*/") {
			l.advanceN(2)
			return
		}
		l.advanceRune()
	}
	l.diag.Errorf(startPos, "Unterminated comment")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *Lexer) lexIdentOrKeyword(pos Position) *Token {
	start := l.pos
	for l.pos < len(l.src.Text) && isIdentCont(l.peekByte()) {
		l.advanceRune()
	}
	val := l.src.Text[start:l.pos]
	if directiveKeywords[val] {
		return &Token{Typ: TokKeyword, Val: val, Pos: pos}
	}
	return &Token{Typ: TokIdent, Val: val, Pos: pos}
}

// lexNumber lexes decimal, hex (0x...) and octal (0o... or leading-zero)
// integers, and floating literals (digits '.' digits, optional exponent).
func (l *Lexer) lexNumber(pos Position) *Token {
	start := l.pos
	if l.peekByte() == '0' && l.pos+1 < len(l.src.Text) && (l.src.Text[l.pos+1] == 'x' || l.src.Text[l.pos+1] == 'X') {
		l.advanceN(2)
		for l.pos < len(l.src.Text) && isHexDigit(l.peekByte()) {
			l.advanceRune()
		}
		return &Token{Typ: TokInt, Val: l.src.Text[start:l.pos], Pos: pos}
	}
	if l.peekByte() == '0' && l.pos+1 < len(l.src.Text) && (l.src.Text[l.pos+1] == 'o' || l.src.Text[l.pos+1] == 'O') {
		l.advanceN(2)
		for l.pos < len(l.src.Text) && l.peekByte() >= '0' && l.peekByte() <= '7' {
			l.advanceRune()
		}
		return &Token{Typ: TokInt, Val: l.src.Text[start:l.pos], Pos: pos}
	}
	for l.pos < len(l.src.Text) && isDigit(l.peekByte()) {
		l.advanceRune()
	}
	isFloat := false
	if l.peekByte() == '.' && l.pos+1 < len(l.src.Text) && isDigit(l.src.Text[l.pos+1]) {
		isFloat = true
		l.advanceRune() // '.'
		for l.pos < len(l.src.Text) && isDigit(l.peekByte()) {
			l.advanceRune()
		}
	}
	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		save := l.pos
		l.advanceRune()
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.advanceRune()
		}
		if isDigit(l.peekByte()) {
			isFloat = true
			for l.pos < len(l.src.Text) && isDigit(l.peekByte()) {
				l.advanceRune()
			}
		} else {
			l.pos = save // not a valid exponent, backtrack
		}
	}
	typ := TokInt
	if isFloat {
		typ = TokFloat
	}
	return &Token{Typ: typ, Val: l.src.Text[start:l.pos], Pos: pos}
}

var stringEscapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', '\\': '\\', '"': '"', '\'': '\'',
}

func (l *Lexer) lexString(pos Position) *Token {
	quote := l.peekByte()
	l.advanceRune() // opening quote
	var sb strings.Builder
	for l.pos < len(l.src.Text) {
		c := l.peekByte()
		if c == quote {
			l.advanceRune()
			return &Token{Typ: TokString, Val: sb.String(), Pos: pos}
		}
		if c == '\n' {
			l.diag.Errorf(pos, "Newline in string literal is not allowed")
			return &Token{Typ: TokInvalid, Val: sb.String(), Pos: pos}
		}
		if c == '\\' {
			l.advanceRune()
			esc := l.peekByte()
			if rep, ok := stringEscapes[esc]; ok {
				sb.WriteByte(rep)
				l.advanceRune()
			} else {
				l.diag.Errorf(pos, "Unknown escape sequence: \\%c", esc)
				l.advanceRune()
			}
			continue
		}
		r, _ := l.advanceRune()
		sb.WriteRune(r)
	}
	l.diag.Errorf(pos, "Unterminated string literal")
	return &Token{Typ: TokInvalid, Val: sb.String(), Pos: pos}
}

// lexRegex lexes a /pattern/flags literal. The opening "/" has already
// been disambiguated from division by expectOperand().
func (l *Lexer) lexRegex(pos Position) *Token {
	l.advanceRune() // opening '/'
	var sb strings.Builder
	closed := false
	for l.pos < len(l.src.Text) {
		c := l.peekByte()
		if c == '/' {
			l.advanceRune()
			closed = true
			break
		}
		if c == '\n' {
			break
		}
		if c == '\\' {
			sb.WriteByte(c)
			l.advanceRune()
			if l.pos < len(l.src.Text) {
				r, _ := l.advanceRune()
				sb.WriteRune(r)
			}
			continue
		}
		r, _ := l.advanceRune()
		sb.WriteRune(r)
	}
	if !closed {
		l.diag.Errorf(pos, "Unterminated regex literal")
		return &Token{Typ: TokInvalid, Val: sb.String(), Pos: pos}
	}
	flagsStart := l.pos
	for l.pos < len(l.src.Text) && isIdentCont(l.peekByte()) {
		l.advanceRune()
	}
	flags := l.src.Text[flagsStart:l.pos]
	return &Token{Typ: TokRegex, Val: sb.String() + "\x00" + flags, Pos: pos}
}

func (l *Lexer) lexSymbol(pos Position) *Token {
	for _, sym := range symbolsByLength {
		if l.hasPrefix(sym) {
			l.advanceN(len(sym))
			return &Token{Typ: TokSymbol, Val: sym, Pos: pos}
		}
	}
	return nil
}

// ParseRegexLiteral splits a TokRegex's Val (pattern + NUL + flags) back
// into its two parts; it's a small helper for the parser/regex pool.
func ParseRegexLiteral(val string) (pattern, flags string) {
	if i := strings.IndexByte(val, 0); i >= 0 {
		return val[:i], val[i+1:]
	}
	return val, ""
}

// ParseIntLiteral parses a lexed TokInt value (which may carry a 0x/0o
// prefix, or a leading zero marking octal) into an int64.
func ParseIntLiteral(val string) (int64, error) {
	if strings.HasPrefix(val, "0x") || strings.HasPrefix(val, "0X") {
		return strconv.ParseInt(val[2:], 16, 64)
	}
	if strings.HasPrefix(val, "0o") || strings.HasPrefix(val, "0O") {
		return strconv.ParseInt(val[2:], 8, 64)
	}
	if len(val) > 1 && val[0] == '0' {
		return strconv.ParseInt(val[1:], 8, 64)
	}
	return strconv.ParseInt(val, 10, 64)
}
