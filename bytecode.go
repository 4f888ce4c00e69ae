package teng

import "fmt"

// Op is a single VM instruction opcode. The instruction set is flat
// (no nested AST at runtime): the parser emits a linear Instruction
// slice directly, backpatching jump targets as blocks close, the way a
// one-pass compiler for a simple stack machine does.
type Op int

const (
	OpHalt Op = iota

	// Stack / constants.
	OpPushUndefined
	OpPushInt
	OpPushReal
	OpPushString
	OpPushRegex
	OpPop
	OpDup

	// Variable access.
	OpLoadVar    // push the named attribute of the current fragment cursor
	OpLoadRTVar  // push a compile-time-numbered runtime-local (set by <?teng set?>)
	OpStoreRTVar

	// Arithmetic / string / logical.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpConcat
	OpNot
	OpAnd
	OpOr

	// Comparison.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpMatch    // =~
	OpNotMatch // !~

	// Control flow.
	OpJmp
	OpJmpIfFalse
	OpJmpIfTrue

	// Fragment iteration.
	OpOpenFrag  // push a fragment/list cursor, looping body once per element
	OpNextFrag  // advance iteration cursor; jumps back to the body start (I) until exhausted
	OpCloseFrag // pop the cursor

	// Output.
	OpPrint    // pop value, escape per active ctype, write
	OpPrintRaw // pop value, write verbatim
	OpPrintText // write the literal text carried in the instruction's Str field
	OpPushCType
	OpPopCType
	OpDictLookup // look up Str (a dictionary key) in the active language, write raw

	// Functions.
	OpCallFn // call the builtin/registered function named Str with N args (I)
	OpIndex  // postfix "[expr]" computed member/element access, see VM.execIndex

	// Queries: each resolves the dotted path in Str directly against the
	// current fragment cursor, without first evaluating it as a normal
	// variable reference, so e.g. EXISTS never logs the "undefined path"
	// warning a plain LOAD_VAR would.
	OpExists  // push whether Str resolves to anything
	OpIsEmpty // push whether Str resolves to an empty string/list/undefined
	OpTypeOf  // push the TypeName() of Str's resolved value
	OpCount   // push the element count of Str (lists only; see VM.execCount)
	OpDefined // push whether Str was explicitly set on its fragment
	OpJsonify // push a JSON rendering of Str's resolved value

	// Diagnostics markers, emitted only when the compiler wants a VM-time
	// position to blame without re-deriving it from a line table.
	OpMark
)

// Instruction is one bytecode instruction. Not every field is used by
// every Op; see the Op's doc comment for which fields it reads.
type Instruction struct {
	Op   Op
	I    int64   // integer immediate, jump target, RTVar slot, or arg count
	F    float64 // real immediate
	Str  string  // string immediate, symbol name, function name, ctype name
	Pos  Position
}

func (ins Instruction) String() string {
	return fmt.Sprintf("%-14s i=%d f=%g s=%q", opNames[ins.Op], ins.I, ins.F, ins.Str)
}

var opNames = map[Op]string{
	OpHalt: "HALT", OpPushUndefined: "PUSH_UNDEF", OpPushInt: "PUSH_INT",
	OpPushReal: "PUSH_REAL", OpPushString: "PUSH_STR", OpPushRegex: "PUSH_REGEX",
	OpPop: "POP", OpDup: "DUP", OpLoadVar: "LOAD_VAR", OpLoadRTVar: "LOAD_RTVAR",
	OpStoreRTVar: "STORE_RTVAR", OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL",
	OpDiv: "DIV", OpMod: "MOD", OpPow: "POW", OpNeg: "NEG", OpConcat: "CONCAT",
	OpNot: "NOT", OpAnd: "AND", OpOr: "OR", OpEq: "EQ", OpNe: "NE", OpLt: "LT",
	OpLe: "LE", OpGt: "GT", OpGe: "GE", OpMatch: "MATCH", OpNotMatch: "NOTMATCH",
	OpJmp: "JMP", OpJmpIfFalse: "JMP_IF_FALSE", OpJmpIfTrue: "JMP_IF_TRUE",
	OpOpenFrag: "OPEN_FRAG", OpNextFrag: "NEXT_FRAG", OpCloseFrag: "CLOSE_FRAG",
	OpPrint: "PRINT", OpPrintRaw: "PRINT_RAW", OpPrintText: "PRINT_TEXT",
	OpPushCType: "PUSH_CTYPE", OpPopCType: "POP_CTYPE", OpDictLookup: "DICT_LOOKUP",
	OpCallFn: "CALL_FN", OpIndex: "INDEX", OpMark: "MARK",
	OpExists: "EXISTS", OpIsEmpty: "IS_EMPTY", OpTypeOf: "TYPE_OF",
	OpCount: "COUNT", OpDefined: "DEFINED", OpJsonify: "JSONIFY",
}

// Program is a compiled template: a flat instruction slice plus the
// literal pools and metadata the VM needs to execute it.
type Program struct {
	Filename string
	Code     []Instruction

	// NumRTVars is the count of distinct <?teng set?> locals the compiler
	// assigned numbered slots to; the VM allocates exactly this many per
	// execution (spec: runtime variables are scoped to one execution, not
	// persisted across runs).
	NumRTVars int

	// RTVarNames maps each slot back to its source name (including the
	// reserved "$lang" slot <?teng dict?> uses), so the VM can resolve a
	// runtime variable by name without a separate symbol table.
	RTVarNames []string
}

// emit appends an instruction and returns its index, used by the parser
// as a jump-patch target.
func (p *Program) emit(ins Instruction) int {
	p.Code = append(p.Code, ins)
	return len(p.Code) - 1
}

// patchJump rewrites the I field (jump target) of the instruction at idx
// to point at the current end of the program - the standard
// backpatching move for a single-pass compiler that doesn't know a
// forward jump's destination until the block closes.
func (p *Program) patchJump(idx int) {
	p.Code[idx].I = int64(len(p.Code))
}

// patchJumpTo rewrites the jump target at idx to an explicit address.
func (p *Program) patchJumpTo(idx int, target int) {
	p.Code[idx].I = int64(target)
}

// here returns the address the next emitted instruction will occupy.
func (p *Program) here() int {
	return len(p.Code)
}
