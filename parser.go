package teng

// Parser consumes a token stream produced by Lexer and emits a compiled
// Program directly - there is no intermediate AST. It follows the
// token-cursor pattern (peek/next/expect) rather than building parse
// trees, since the bytecode is flat and most directives compile to a
// short, fixed instruction sequence anyway.
type Parser struct {
	src    *Source
	diag   *Diagnostics
	toks   []*Token
	pos    int
	prog   *Program
	rtVars map[string]int

	// ctypeDepth tracks ctype/endctype nesting at compile time so a
	// mismatched endctype can be reported instead of corrupting the
	// runtime stack.
	ctypeDepth int

	// openBlocks tracks the kind ("if", "frag", "format") of every
	// currently-open block, innermost last, so a closer belonging to an
	// enclosing block (e.g. "endfrag" reached while an inner "if" is still
	// open) can be told apart from the block's own closer - see
	// atForeignBlockEnd/crossBlockError.
	openBlocks []string
}

// blockEndKeyword maps a block kind to the directive keyword that closes
// it, used to recognize when a block closer seen mid-parse actually
// belongs to an ancestor rather than the block currently being parsed.
var blockEndKeyword = map[string]string{
	"if":     "endif",
	"frag":   "endfrag",
	"format": "endformat",
}

// blockNoun names a block kind the way cross-block diagnostics phrase it.
var blockNoun = map[string]string{
	"if":     "if",
	"frag":   "fragment",
	"format": "format",
}

// ParseOptions configures compilation.
type ParseOptions struct {
	NoPrintEscape bool
	DefaultCType  string
}

// Parse lexes and compiles src into a Program, appending every lexical
// and syntactic diagnostic to diag. A Program is always returned, even
// when diag.HasFatal() is true afterward - callers should check HasFatal
// before executing it (see Engine.render).
func Parse(src *Source, diag *Diagnostics, opts ParseOptions) *Program {
	lx := NewLexer(src, diag, opts.NoPrintEscape)
	toks := lx.Lex()
	p := &Parser{
		src:    src,
		diag:   diag,
		toks:   toks,
		prog:   &Program{Filename: src.Filename},
		rtVars: make(map[string]int),
	}
	p.parseProgram()
	p.prog.emit(Instruction{Op: OpHalt})
	return p.prog
}

func (p *Parser) cur() *Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF sentinel
	}
	return p.toks[p.pos]
}

func (p *Parser) at(typ TokenType) bool {
	return p.cur().Typ == typ
}

func (p *Parser) atKeyword(kw string) bool {
	return p.cur().Typ == TokKeyword && p.cur().Val == kw
}

func (p *Parser) atSymbol(sym string) bool {
	return p.cur().Typ == TokSymbol && p.cur().Val == sym
}

func (p *Parser) advance() *Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(typ TokenType, what string) *Token {
	if !p.at(typ) {
		p.errorf("Expected %s, got %s", what, p.cur())
		return p.cur()
	}
	return p.advance()
}

func (p *Parser) expectSymbol(sym string) {
	if !p.atSymbol(sym) {
		p.errorf("Expected %q, got %s", sym, p.cur())
		return
	}
	p.advance()
}

func (p *Parser) expectKeyword(kw string) {
	if !p.atKeyword(kw) {
		p.errorf("Expected keyword %q, got %s", kw, p.cur())
		return
	}
	p.advance()
}

func (p *Parser) errorf(format string, args ...any) {
	p.diag.Errorf(p.cur().Pos, format, args...)
}

// recover implements panic-mode error recovery: skip tokens until a
// directive/print closer is consumed (or EOF), so one malformed
// directive doesn't cascade into spurious errors for the rest of the
// template. This is also what keeps a malformed directive from leaking
// tokens across into the next block (cross-block protection).
func (p *Parser) recover() {
	for {
		switch p.cur().Typ {
		case TokEOF:
			return
		case TokDirectiveClose, TokShortClose:
			p.advance()
			return
		default:
			p.advance()
		}
	}
}

func (p *Parser) rtVarSlot(name string) int {
	if slot, ok := p.rtVars[name]; ok {
		return slot
	}
	slot := len(p.rtVars)
	p.rtVars[name] = slot
	p.prog.NumRTVars = slot + 1
	p.prog.RTVarNames = append(p.prog.RTVarNames, name)
	return slot
}

// parseProgram is the top-level loop: emit TEXT runs verbatim, compile
// print forms and directives, and recover from any block that errors so
// later, independent blocks still compile.
func (p *Parser) parseProgram() {
	p.parseBlockBody(func() bool { return false })
}

func (p *Parser) parsePrintForm(raw bool) {
	pos := p.cur().Pos
	p.advance() // opener
	p.parseExpr()
	p.expect(TokShortClose, "'}'")
	if raw {
		p.prog.emit(Instruction{Op: OpPrintRaw, Pos: pos})
	} else {
		p.prog.emit(Instruction{Op: OpPrint, Pos: pos})
	}
}

func (p *Parser) parseDictPrint() {
	pos := p.cur().Pos
	p.advance() // #{
	key := p.expect(TokString, "dictionary key string")
	p.expect(TokShortClose, "'}'")
	p.prog.emit(Instruction{Op: OpDictLookup, Str: key.Val, Pos: pos})
}

// parseDirective dispatches on the keyword following <?teng, recovering
// on parse failure so one bad directive doesn't poison the whole file.
// The "<?teng" opener must already be consumed by the caller for
// continuation clauses (elif/else/endif/...); parseDirective itself
// consumes its own opener when reached from the top of parseBlockBody.
func (p *Parser) parseDirective() {
	p.advance() // <?teng
	p.dispatchDirective()
}

func (p *Parser) dispatchDirective() {
	if !p.at(TokKeyword) {
		p.errorf("Expected directive keyword after <?teng, got %s", p.cur())
		p.recover()
		return
	}
	kw := p.cur().Val
	switch kw {
	case "if":
		p.parseIf()
	case "frag":
		p.parseFrag()
	case "format":
		p.parseFormat()
	case "ctype":
		p.parseCType()
	case "endctype":
		p.parseEndCType()
	case "expr":
		p.parseExprDirective()
	case "set":
		p.parseSet()
	case "dict":
		p.parseDictDirective()
	case "include":
		p.parseInclude()
	case "case":
		pos := p.cur().Pos
		p.advance()
		p.parseExpr()
		p.prog.emit(Instruction{Op: OpPop, Pos: pos})
		p.expect(TokDirectiveClose, "'?>'")
	default:
		p.errorf("Unexpected directive keyword %q here", kw)
		p.recover()
	}
}

// atDirectiveKeyword reports whether the cursor sits exactly at
// "<?teng KW" for one of the given keywords, without consuming anything.
func (p *Parser) atDirectiveKeyword(kws ...string) bool {
	if !p.at(TokDirectiveOpen) {
		return false
	}
	next := p.pos + 1
	if next >= len(p.toks) || p.toks[next].Typ != TokKeyword {
		return false
	}
	for _, kw := range kws {
		if p.toks[next].Val == kw {
			return true
		}
	}
	return false
}

// atForeignBlockEnd reports whether the cursor sits at the end keyword of
// a block enclosing the one currently being parsed (any entry in
// openBlocks other than the innermost), meaning the block being parsed was
// never properly closed - it was crossed by an outer block's closer
// instead.
func (p *Parser) atForeignBlockEnd() bool {
	return p.foreignBlockKind() != ""
}

func (p *Parser) foreignBlockKind() string {
	if len(p.openBlocks) < 2 {
		return ""
	}
	for _, kind := range p.openBlocks[:len(p.openBlocks)-1] {
		if p.atDirectiveKeyword(blockEndKeyword[kind]) {
			return kind
		}
	}
	return ""
}

// crossBlockError reports a block closer that belongs to an enclosing
// block, discards every instruction emitted for the still-open inner block
// (from startPC on), and leaves the cursor sitting at the outer closer so
// the enclosing block's own parse picks it up normally.
func (p *Parser) crossBlockError(kind string, startPC int) {
	outer := p.foreignBlockKind()
	p.diag.Errorf(p.cur().Pos, "%s statement crosses the parent %s block", blockNoun[kind], blockNoun[outer])
	p.prog.Code = p.prog.Code[:startPC]
	p.openBlocks = p.openBlocks[:len(p.openBlocks)-1]
}

// unterminatedBlockError reports EOF reached before a block's own closer
// and discards the block's partially-compiled instructions.
func (p *Parser) unterminatedBlockError(message string, startPC int) {
	p.diag.Errorf(p.cur().Pos, "%s", message)
	p.prog.Code = p.prog.Code[:startPC]
	p.openBlocks = p.openBlocks[:len(p.openBlocks)-1]
}

// canStartExpr reports whether the cursor could begin a valid expression,
// used to emit a DIAG hint before parseExpr's own ERROR when a condition is
// obviously malformed (e.g. "<?teng if ?>").
func (p *Parser) canStartExpr() bool {
	switch p.cur().Typ {
	case TokInt, TokFloat, TokString, TokRegex, TokIdent:
		return true
	case TokKeyword:
		return p.cur().Val == "case"
	case TokSymbol:
		return p.atSymbol("(") || p.atSymbol("-") || p.atSymbol("!")
	}
	return false
}

// parseCondition parses an if/elif condition, emitting a DIAG hint ahead of
// parseExpr's own ERROR when the next token plainly can't start one.
func (p *Parser) parseCondition(context string) {
	if !p.canStartExpr() {
		p.diag.Diagf(p.cur().Pos, "Invalid expression in the %s condition", context)
	}
	p.parseExpr()
}

// parseBlockBody parses top-level content (text, prints, nested
// directives) until stop() reports true or EOF is reached.
func (p *Parser) parseBlockBody(stop func() bool) {
	for !p.at(TokEOF) && !stop() {
		switch p.cur().Typ {
		case TokText:
			t := p.advance()
			p.prog.emit(Instruction{Op: OpPrintText, Str: t.Val, Pos: t.Pos})
		case TokPrintOpen:
			p.parsePrintForm(false)
		case TokPrintRawOpen:
			p.parsePrintForm(true)
		case TokDictOpen:
			p.parseDictPrint()
		case TokDirectiveOpen:
			p.parseDirective()
		default:
			p.errorf("Unexpected token %s", p.cur())
			p.recover()
		}
	}
}

// parseIf compiles <?teng if E?> ... (<?teng elif E?> ...)* (<?teng else?>
// ...)? <?teng endif?>, backpatching each branch's jump-past-the-rest. If a
// closer belonging to an enclosing block (e.g. "endfrag") or EOF is reached
// before "endif", the whole if statement is discarded - see
// crossBlockError/unterminatedBlockError.
func (p *Parser) parseIf() {
	startPC := p.prog.here()
	p.openBlocks = append(p.openBlocks, "if")
	p.advance() // 'if'
	p.parseCondition("if statement")
	p.expect(TokDirectiveClose, "'?>'")
	falseJump := p.prog.emit(Instruction{Op: OpJmpIfFalse})
	var endJumps []int

	for {
		p.parseBlockBody(func() bool {
			return p.atDirectiveKeyword("elif", "else", "endif") || p.atForeignBlockEnd()
		})
		if !p.atDirectiveKeyword("elif", "else", "endif") {
			p.closeUnterminated("if", "discarding whole if statement", startPC)
			return
		}
		if p.atDirectiveKeyword("elif") {
			endJumps = append(endJumps, p.prog.emit(Instruction{Op: OpJmp}))
			p.prog.patchJump(falseJump)
			p.advance() // '<?teng'
			p.advance() // 'elif'
			p.parseCondition("if statement")
			p.expect(TokDirectiveClose, "'?>'")
			falseJump = p.prog.emit(Instruction{Op: OpJmpIfFalse})
			continue
		}
		if p.atDirectiveKeyword("else") {
			endJumps = append(endJumps, p.prog.emit(Instruction{Op: OpJmp}))
			p.prog.patchJump(falseJump)
			falseJump = -1
			p.advance() // '<?teng'
			p.advance() // 'else'
			p.expect(TokDirectiveClose, "'?>'")
			p.parseBlockBody(func() bool {
				return p.atDirectiveKeyword("endif") || p.atForeignBlockEnd()
			})
			if !p.atDirectiveKeyword("endif") {
				p.closeUnterminated("if", "discarding whole if statement", startPC)
				return
			}
		}
		break
	}
	if falseJump >= 0 {
		p.prog.patchJump(falseJump)
	}
	for _, j := range endJumps {
		p.prog.patchJump(j)
	}
	p.advance() // '<?teng'
	p.expectKeyword("endif")
	p.expect(TokDirectiveClose, "'?>'")
	p.openBlocks = p.openBlocks[:len(p.openBlocks)-1]
}

// closeUnterminated is called once a block's own stop keyword failed to
// match: either the cursor sits at an enclosing block's closer (cross-block
// protection) or at EOF (an honestly unterminated block). Either way the
// block's own bytecode is discarded.
func (p *Parser) closeUnterminated(kind, eofMessage string, startPC int) {
	if p.atForeignBlockEnd() {
		p.crossBlockError(kind, startPC)
		return
	}
	p.unterminatedBlockError(eofMessage, startPC)
}

// parseFrag compiles <?teng frag PATH?> ... <?teng endfrag?> into an
// OPEN_FRAG/NEXT_FRAG/CLOSE_FRAG loop. A closer belonging to an enclosing
// block, or EOF, before "endfrag" discards the whole fragment block - see
// closeUnterminated.
func (p *Parser) parseFrag() {
	startPC := p.prog.here()
	p.openBlocks = append(p.openBlocks, "frag")
	pos := p.cur().Pos
	p.advance() // 'frag'
	path := p.parsePathExpr()
	p.expect(TokDirectiveClose, "'?>'")

	openIdx := p.prog.emit(Instruction{Op: OpOpenFrag, Str: path, Pos: pos})
	bodyStart := p.prog.here()
	p.parseBlockBody(func() bool {
		return p.atDirectiveKeyword("endfrag") || p.atForeignBlockEnd()
	})
	if !p.atDirectiveKeyword("endfrag") {
		p.closeUnterminated("frag", "discarding fragment block content", startPC)
		return
	}
	p.prog.emit(Instruction{Op: OpNextFrag, I: int64(bodyStart)})
	p.prog.patchJumpTo(openIdx, p.prog.here())
	p.prog.emit(Instruction{Op: OpCloseFrag})
	p.advance() // '<?teng'
	p.expectKeyword("endfrag")
	p.expect(TokDirectiveClose, "'?>'")
	p.openBlocks = p.openBlocks[:len(p.openBlocks)-1]
}

// parseFormat compiles <?teng format EXPR?> ... <?teng endformat?>. teng
// has no runtime formatting registry to plug a format string into here,
// so the format expression is evaluated for its side effects/diagnostics
// and discarded, matching how <?teng expr?> behaves, and the block's
// content is emitted as-is.
func (p *Parser) parseFormat() {
	startPC := p.prog.here()
	p.openBlocks = append(p.openBlocks, "format")
	pos := p.cur().Pos
	p.advance() // 'format'
	p.parseExpr()
	p.prog.emit(Instruction{Op: OpPop, Pos: pos})
	p.expect(TokDirectiveClose, "'?>'")
	p.parseBlockBody(func() bool {
		return p.atDirectiveKeyword("endformat") || p.atForeignBlockEnd()
	})
	if !p.atDirectiveKeyword("endformat") {
		p.closeUnterminated("format", "discarding format block content", startPC)
		return
	}
	p.advance() // '<?teng'
	p.expectKeyword("endformat")
	p.expect(TokDirectiveClose, "'?>'")
	p.openBlocks = p.openBlocks[:len(p.openBlocks)-1]
}

func (p *Parser) parseCType() {
	pos := p.cur().Pos
	p.advance() // 'ctype'
	name := p.expect(TokIdent, "content type name")
	p.expect(TokDirectiveClose, "'?>'")
	p.ctypeDepth++
	p.prog.emit(Instruction{Op: OpPushCType, Str: name.Val, Pos: pos})
}

func (p *Parser) parseEndCType() {
	pos := p.cur().Pos
	p.advance() // 'endctype'
	p.expect(TokDirectiveClose, "'?>'")
	if p.ctypeDepth == 0 {
		p.diag.Errorf(pos, "endctype without matching ctype")
		return
	}
	p.ctypeDepth--
	p.prog.emit(Instruction{Op: OpPopCType, Pos: pos})
}

func (p *Parser) parseExprDirective() {
	pos := p.cur().Pos
	p.advance() // 'expr'
	p.parseExpr()
	p.prog.emit(Instruction{Op: OpPop, Pos: pos})
	p.expect(TokDirectiveClose, "'?>'")
}

func (p *Parser) parseSet() {
	pos := p.cur().Pos
	p.advance() // 'set'
	name := p.expect(TokIdent, "variable name")
	p.expectSymbol("=")
	p.parseExpr()
	p.expect(TokDirectiveClose, "'?>'")
	slot := p.rtVarSlot(name.Val)
	p.prog.emit(Instruction{Op: OpStoreRTVar, I: int64(slot), Str: name.Val, Pos: pos})
}

// parseDictDirective compiles <?teng dict LANG?>, which selects the
// language subsequent #{key} print forms resolve against; it stores the
// language name in a reserved runtime variable the VM consults when it
// hits DICT_LOOKUP, rather than using a dedicated opcode, since it's
// purely bookkeeping shared with the ordinary runtime-variable slots.
func (p *Parser) parseDictDirective() {
	pos := p.cur().Pos
	p.advance() // 'dict'
	lang := p.expect(TokIdent, "language identifier")
	p.expect(TokDirectiveClose, "'?>'")
	p.prog.emit(Instruction{Op: OpPushString, Str: lang.Val, Pos: pos})
	slot := p.rtVarSlot("$lang")
	p.prog.emit(Instruction{Op: OpStoreRTVar, I: int64(slot), Str: "$lang", Pos: pos})
}

// parseInclude compiles <?teng include PATH?>. The parser only emits a
// marker CALL_FN; the Engine compiles the included template separately
// (see engine.go), and the VM runs it in a sub-VM when it reaches the
// marker. Nothing is spliced into or rewritten in this program.
func (p *Parser) parseInclude() {
	pos := p.cur().Pos
	p.advance() // 'include'
	path := p.expect(TokString, "included template path")
	p.expect(TokDirectiveClose, "'?>'")
	p.prog.emit(Instruction{Op: OpCallFn, Str: "@include:" + path.Val, Pos: pos})
}

// parsePathExpr parses a dotted path used by <?teng frag ...?> (not a
// general expression - frag always names a fragment/list path, never an
// arbitrary computed value) and returns it as a single dotted string for
// the VM's path resolver.
func (p *Parser) parsePathExpr() string {
	var sb []byte
	first := p.expect(TokIdent, "fragment path")
	sb = append(sb, first.Val...)
	for p.atSymbol(".") {
		p.advance()
		seg := p.expect(TokIdent, "path segment")
		sb = append(sb, '.')
		sb = append(sb, seg.Val...)
	}
	return string(sb)
}
