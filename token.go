package teng

import "fmt"

// TokenType classifies a lexical token produced by the Lexer.
type TokenType int

const (
	TokEOF TokenType = iota

	// TokText is a maximal run of template source outside any directive
	// or print form.
	TokText

	// Directive/print openers. Each carries no value beyond its type;
	// the exact spelling is implied by the type (so the parser doesn't
	// need to re-check Val).
	TokDirectiveOpen // <?teng
	TokPrintOpen     // ${
	TokPrintRawOpen  // %{
	TokDictOpen      // #{

	// Closers.
	TokDirectiveClose // ?>
	TokShortClose     // } (closes ${...}, %{...}, #{...})

	TokIdent
	TokKeyword // if elif else endif frag endfrag format endformat ctype endctype expr set dict include case

	TokInt
	TokFloat
	TokString
	TokRegex

	// TokSymbol covers every operator and punctuation mark inside an
	// expression; Val carries the exact spelling ("+", "==", "(", ...).
	TokSymbol

	// TokInvalid is produced by the lexer for a string or regex literal
	// it could not complete (unterminated, or a newline inside a string
	// literal). Val holds the part lexed before the failure.
	TokInvalid
)

func (t TokenType) String() string {
	switch t {
	case TokEOF:
		return "EOF"
	case TokText:
		return "TEXT"
	case TokDirectiveOpen:
		return "DIRECTIVE_OPEN"
	case TokPrintOpen:
		return "PRINT_OPEN"
	case TokPrintRawOpen:
		return "PRINT_RAW_OPEN"
	case TokDictOpen:
		return "DICT_OPEN"
	case TokDirectiveClose:
		return "DIRECTIVE_CLOSE"
	case TokShortClose:
		return "SHORT_CLOSE"
	case TokIdent:
		return "IDENT"
	case TokKeyword:
		return "KEYWORD"
	case TokInt:
		return "INT"
	case TokFloat:
		return "FLOAT"
	case TokString:
		return "STRING"
	case TokRegex:
		return "REGEX"
	case TokSymbol:
		return "SYMBOL"
	case TokInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// Token is a single lexical element, always carrying the source position
// of its first character so later diagnostics can point back into the
// template.
type Token struct {
	Typ TokenType
	Val string
	Pos Position
}

func (t *Token) String() string {
	val := t.Val
	if len(val) > 64 {
		val = val[:61] + "..."
	}
	return fmt.Sprintf("<%s %q @%d:%d>", t.Typ, val, t.Pos.Line, t.Pos.Column)
}

// directiveKeywords is the closed set of directive keywords; teng's
// language has no mechanism for user-registered keywords (unlike a
// pluggable tag system), so this set never grows at runtime.
var directiveKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "endif": true,
	"frag": true, "endfrag": true,
	"format": true, "endformat": true,
	"ctype": true, "endctype": true,
	"expr": true, "set": true, "dict": true, "include": true, "case": true,
}

// symbolsByLength lists operator/punctuation spellings ordered longest
// first so the lexer always matches greedily ("**" before "*", "!=" before
// "!").
var symbolsByLength = []string{
	"**", "++",
	"==", "!=", "<=", ">=", "=~", "!~",
	"&&", "||",
	"(", ")", "[", "]", ",", ":", "?", ".",
	"+", "-", "*", "/", "%", "^", "&", "|", "!", "~", "<", ">", "=",
}
