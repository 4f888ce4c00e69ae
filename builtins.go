package teng

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Func is a built-in or caller-registered callable usable from CALL_FN.
// It receives already-evaluated argument Values and returns a single
// result Value, or an error to abort the enclosing execution (spec:
// a built-in function error is a VM-fatal condition, not merely logged,
// since the expression that called it has no sensible fallback value).
type Func func(args []Value) (Value, error)

// builtinFuncs is the closed set of functions teng ships; the WithFunc
// option adds more to an engine's own copy without touching this map.
var builtinFuncs = map[string]Func{
	"len":           fnLen,
	"substr":        fnSubstr,
	"wordsubstr":    fnWordSubstr,
	"reorder":       fnReorder,
	"replace":       fnReplace,
	"regex_replace": fnRegexReplace,
	"strtolower":    fnStrToLower,
	"strtoupper":    fnStrToUpper,
	"nl2br":         fnNl2Br,
	"isnumber":      fnIsNumber,
	"numformat":     fnNumFormat,
	"round":         fnRound,
	"int":           fnInt,
	"real":          fnReal,
	"string":        fnString,
	"typeof":        fnTypeof,
	"random":        fnRandom,
	"now":           fnNow,
	"timestamp":     fnTimestamp,
	"date":          fnDate,
	"sectotime":     fnSecToTime,
}

func argErr(name string, want, got int) error {
	return fmt.Errorf("%s(): expected %d argument(s), got %d", name, want, got)
}

func fnLen(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("len", 1, len(args))
	}
	switch args[0].Kind() {
	case KindString:
		return IntValue(int64(len([]rune(args[0].AsString())))), nil
	case KindListRef:
		return IntValue(int64(args[0].AsList().Len())), nil
	default:
		return Undefined, fmt.Errorf("len(): argument has no length (kind %s)", args[0].Kind())
	}
}

func fnStrToLower(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("strtolower", 1, len(args))
	}
	return StringValue(strings.ToLower(args[0].AsString())), nil
}

func fnStrToUpper(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("strtoupper", 1, len(args))
	}
	return StringValue(strings.ToUpper(args[0].AsString())), nil
}

func fnNl2Br(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("nl2br", 1, len(args))
	}
	return StringValue(strings.ReplaceAll(args[0].AsString(), "\n", "<br />\n")), nil
}

func fnIsNumber(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("isnumber", 1, len(args))
	}
	switch args[0].Kind() {
	case KindInt, KindReal:
		return boolValue(true), nil
	case KindString:
		s := strings.TrimSpace(args[0].AsString())
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return boolValue(true), nil
		}
		return boolValue(false), nil
	default:
		return boolValue(false), nil
	}
}

// fnNumFormat formats a number with a fixed number of decimal places,
// e.g. numformat(3.14159, 2) -> "3.14".
func fnNumFormat(args []Value) (Value, error) {
	if len(args) != 2 {
		return Undefined, argErr("numformat", 2, len(args))
	}
	decimals := int(args[1].AsInt())
	if decimals < 0 {
		decimals = 0
	}
	return StringValue(strconv.FormatFloat(args[0].ToReal(), 'f', decimals, 64)), nil
}

// fnWordSubstr extracts a run of whitespace-separated words, e.g.
// wordsubstr("the quick brown fox", 1, 2) -> "quick brown".
func fnWordSubstr(args []Value) (Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return Undefined, fmt.Errorf("wordsubstr(): expected 2 or 3 arguments, got %d", len(args))
	}
	words := strings.Fields(args[0].AsString())
	start := int(args[1].AsInt())
	if start < 0 {
		start += len(words)
	}
	if start < 0 {
		start = 0
	}
	if start > len(words) {
		start = len(words)
	}
	end := len(words)
	if len(args) == 3 {
		end = start + int(args[2].AsInt())
		if end > len(words) {
			end = len(words)
		}
		if end < start {
			end = start
		}
	}
	return StringValue(strings.Join(words[start:end], " ")), nil
}

// fnReorder substitutes positional placeholders %1, %2, ... in a format
// string with the remaining arguments, letting a translated string reorder
// its substitutions independently of the call site's argument order.
func fnReorder(args []Value) (Value, error) {
	if len(args) < 1 {
		return Undefined, fmt.Errorf("reorder(): expected at least 1 argument, got %d", len(args))
	}
	format := args[0].AsString()
	rest := args[1:]
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			sb.WriteByte(format[i])
			continue
		}
		j := i + 1
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		if j == i+1 {
			sb.WriteByte(format[i])
			continue
		}
		n, _ := strconv.Atoi(format[i+1 : j])
		if n >= 1 && n <= len(rest) {
			sb.WriteString(rest[n-1].String())
		}
		i = j - 1
	}
	return StringValue(sb.String()), nil
}

func fnRegexReplace(args []Value) (Value, error) {
	if len(args) != 3 {
		return Undefined, argErr("regex_replace", 3, len(args))
	}
	if args[1].Kind() != KindRegex || args[1].AsRegex() == nil {
		return Undefined, fmt.Errorf("regex_replace(): second argument must be a regex literal")
	}
	return StringValue(args[1].AsRegex().ReplaceAllString(args[0].AsString(), goReplacement(args[2].AsString()))), nil
}

// goReplacement rewrites teng's "\1"-style backreferences into Go regexp's
// "$1" replacement syntax.
func goReplacement(tpl string) string {
	var sb strings.Builder
	for i := 0; i < len(tpl); i++ {
		if tpl[i] == '\\' && i+1 < len(tpl) && tpl[i+1] >= '0' && tpl[i+1] <= '9' {
			sb.WriteByte('$')
			sb.WriteByte(tpl[i+1])
			i++
			continue
		}
		if tpl[i] == '$' {
			sb.WriteString("$$")
			continue
		}
		sb.WriteByte(tpl[i])
	}
	return sb.String()
}

func fnRandom(args []Value) (Value, error) {
	if len(args) != 2 {
		return Undefined, argErr("random", 2, len(args))
	}
	lo, hi := args[0].AsInt(), args[1].AsInt()
	if hi < lo {
		lo, hi = hi, lo
	}
	return IntValue(lo + rand.Int63n(hi-lo+1)), nil
}

func fnNow(args []Value) (Value, error) {
	if len(args) != 0 {
		return Undefined, argErr("now", 0, len(args))
	}
	return IntValue(time.Now().Unix()), nil
}

func fnTimestamp(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("timestamp", 1, len(args))
	}
	return IntValue(args[0].AsInt()), nil
}

// strftimeTable is the small subset of strftime conversions teng's date()
// supports: year, month, day, hour, minute, second in their usual
// zero-padded forms.
var strftimeTable = map[byte]string{
	'Y': "2006",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
}

// fnDate formats a unix timestamp with a strftime-subset format string,
// e.g. date(ts, "%Y-%m-%d %H:%M:%S").
func fnDate(args []Value) (Value, error) {
	if len(args) != 2 {
		return Undefined, argErr("date", 2, len(args))
	}
	t := time.Unix(args[0].AsInt(), 0).UTC()
	format := args[1].AsString()
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			sb.WriteByte(format[i])
			continue
		}
		i++
		if format[i] == '%' {
			sb.WriteByte('%')
			continue
		}
		if layout, ok := strftimeTable[format[i]]; ok {
			sb.WriteString(t.Format(layout))
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(format[i])
	}
	return StringValue(sb.String()), nil
}

// fnSecToTime renders a duration in seconds as "HH:MM:SS".
func fnSecToTime(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("sectotime", 1, len(args))
	}
	total := args[0].AsInt()
	neg := total < 0
	if neg {
		total = -total
	}
	h, rem := total/3600, total%3600
	m, sec := rem/60, rem%60
	s := fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	if neg {
		s = "-" + s
	}
	return StringValue(s), nil
}

func fnSubstr(args []Value) (Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return Undefined, fmt.Errorf("substr(): expected 2 or 3 arguments, got %d", len(args))
	}
	s := []rune(args[0].AsString())
	start := int(args[1].AsInt())
	if start < 0 {
		start += len(s)
	}
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	end := len(s)
	if len(args) == 3 {
		end = start + int(args[2].AsInt())
		if end > len(s) {
			end = len(s)
		}
		if end < start {
			end = start
		}
	}
	return StringValue(string(s[start:end])), nil
}

func fnReplace(args []Value) (Value, error) {
	if len(args) != 3 {
		return Undefined, argErr("replace", 3, len(args))
	}
	return StringValue(strings.ReplaceAll(args[0].AsString(), args[1].AsString(), args[2].AsString())), nil
}

// fnRound rounds half away from zero (0.5 -> 1, -0.5 -> -1, matching
// math.Round rather than banker's rounding). With an optional second
// argument it rounds to that many decimal places instead of to an integer.
func fnRound(args []Value) (Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return Undefined, fmt.Errorf("round(): expected 1 or 2 arguments, got %d", len(args))
	}
	if len(args) == 1 {
		return IntValue(int64(math.Round(args[0].ToReal()))), nil
	}
	decimals := int(args[1].AsInt())
	scale := math.Pow(10, float64(decimals))
	return RealValue(math.Round(args[0].ToReal()*scale) / scale), nil
}

func fnInt(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("int", 1, len(args))
	}
	switch args[0].Kind() {
	case KindInt:
		return args[0], nil
	case KindReal:
		return IntValue(int64(args[0].AsReal())), nil
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(args[0].AsString()), 10, 64)
		if err != nil {
			return Undefined, fmt.Errorf("int(): cannot convert %q: %w", args[0].AsString(), err)
		}
		return IntValue(i), nil
	default:
		return Undefined, fmt.Errorf("int(): cannot convert kind %s", args[0].Kind())
	}
}

func fnReal(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("real", 1, len(args))
	}
	switch args[0].Kind() {
	case KindInt:
		return RealValue(float64(args[0].AsInt())), nil
	case KindReal:
		return args[0], nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].AsString()), 64)
		if err != nil {
			return Undefined, fmt.Errorf("real(): cannot convert %q: %w", args[0].AsString(), err)
		}
		return RealValue(f), nil
	default:
		return Undefined, fmt.Errorf("real(): cannot convert kind %s", args[0].Kind())
	}
}

func fnString(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("string", 1, len(args))
	}
	return StringValue(args[0].String()), nil
}

// fnTypeof mirrors the type()/typeof() query (see OpTypeOf) for callers
// that already hold an evaluated Value rather than an unresolved path.
func fnTypeof(args []Value) (Value, error) {
	if len(args) != 1 {
		return Undefined, argErr("typeof", 1, len(args))
	}
	return StringValue(args[0].TypeName()), nil
}
