package cipher

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ytget/ytsig/internal/logger"
)

// Building blocks of the fallback grammar.
const (
	varJS       = `[a-zA-Z_$][\w$]*`
	singleQuote = `'[^'\\]*(?:\\[\s\S][^'\\]*)*'`
	doubleQuote = `"[^"\\]*(?:\\[\s\S][^"\\]*)*"`
	quoteJS     = `(?:` + singleQuote + `|` + doubleQuote + `)`
	keyJS       = `(?:` + varJS + `|` + quoteJS + `)`
	propJS      = `(?:\.` + varJS + `|\[` + quoteJS + `\])`
	emptyJS     = `(?:''|"")`

	reverseFn = `:function\(a\)\{(?:return )?a\.reverse\(\)\}`
	sliceFn   = `:function\(a,b\)\{return a\.slice\(b\)\}`
	spliceFn  = `:function\(a,b\)\{a\.splice\(0,b\)\}`
	swapFn    = `:function\(a,b\)\{var c=a\[0\];a\[0\]=a\[b(?:%a\.length)?\];a\[b(?:%a\.length)?\]=c(?:;return a)?\}`
)

var (
	helperObjectRe = regexp.MustCompile(`var (` + varJS + `)=\{((?:(?:` +
		keyJS + reverseFn + `|` + keyJS + sliceFn + `|` + keyJS + spliceFn + `|` + keyJS + swapFn +
		`),?\r?\n?)+)\};`)

	driverFuncRe = regexp.MustCompile(`function(?: ` + varJS + `)?\(a\)\{a=a\.split\(` + emptyJS + `\);\s*` +
		`((?:(?:a=)?` + varJS + propJS + `\(a,\d+\);)+)` +
		`return a\.join\(` + emptyJS + `\)\}`)

	// opShapes recover the key bound to each operation inside the helper
	// object body.
	opShapes = []struct {
		op Op
		re *regexp.Regexp
	}{
		{OpReverse, regexp.MustCompile(`(?m)(?:^|,)(` + keyJS + `)` + reverseFn)},
		{OpSliceFrom, regexp.MustCompile(`(?m)(?:^|,)(` + keyJS + `)` + sliceFn)},
		{OpSpliceDropPrefix, regexp.MustCompile(`(?m)(?:^|,)(` + keyJS + `)` + spliceFn)},
		{OpSwapWithFirst, regexp.MustCompile(`(?m)(?:^|,)(` + keyJS + `)` + swapFn)},
	}
)

// unquoteKey strips the quotes from a quoted object key.
func unquoteKey(key string) string {
	if len(key) >= 2 && (key[0] == '\'' || key[0] == '"') && key[len(key)-1] == key[0] {
		return key[1 : len(key)-1]
	}
	return key
}

// DecodeTokens recovers the decipher transformation from bundle as an
// ordered token list, without running any of the bundle's code. It needs a
// helper object made only of the four known operation shapes and a driver
// function that splits, calls the helper and joins.
func DecodeTokens(bundle string) ([]Token, error) {
	log := logger.WithComponent(logger.ComponentCipher)

	fm := driverFuncRe.FindStringSubmatch(bundle)
	if fm == nil {
		return nil, NewError(ErrCodeTokenGrammarMismatch, "driver function not found")
	}
	om := helperObjectRe.FindStringSubmatch(bundle)
	if om == nil {
		return nil, NewError(ErrCodeTokenGrammarMismatch, "helper object not found")
	}
	object, objBody, calls := om[1], om[2], fm[1]

	keyOps := make(map[string]Op, len(opShapes))
	for _, shape := range opShapes {
		if m := shape.re.FindStringSubmatch(objBody); m != nil {
			keyOps[unquoteKey(m[1])] = shape.op
		}
	}
	if len(keyOps) == 0 {
		return nil, NewError(ErrCodeTokenGrammarMismatch, "no operation keys in helper object", object)
	}

	keys := lo.Map(lo.Keys(keyOps), func(k string, _ int) string { return regexp.QuoteMeta(k) })
	alt := `(` + strings.Join(keys, "|") + `)`
	callRe, err := regexp.Compile(`(?:a=)?` + regexp.QuoteMeta(object) +
		`(?:\.` + alt + `|\['` + alt + `'\]|\["` + alt + `"\])\(a,(\d+)\)`)
	if err != nil {
		return nil, WrapError(ErrCodeTokenGrammarMismatch, "build call-site pattern", err)
	}

	var tokens []Token
	for _, m := range callRe.FindAllStringSubmatch(calls, -1) {
		key := lo.Compact([]string{m[1], m[2], m[3]})
		if len(key) == 0 {
			continue
		}
		arg, err := strconv.Atoi(m[4])
		if err != nil {
			return nil, WrapError(ErrCodeTokenGrammarMismatch, "bad call-site argument", err, m[0])
		}
		op := keyOps[key[0]]
		if op == OpReverse {
			arg = 0
		}
		tokens = append(tokens, Token{Op: op, Arg: arg})
	}
	if len(tokens) == 0 {
		return nil, NewError(ErrCodeTokenGrammarMismatch, "driver calls none of the helper keys", object)
	}

	log.Debug("decoded fallback tokens", map[string]any{
		"object": object,
		"tokens": FormatTokens(tokens),
	})
	return tokens, nil
}
