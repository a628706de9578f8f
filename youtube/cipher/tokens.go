package cipher

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is one of the four array operations the fallback decoder knows.
type Op int

const (
	OpReverse Op = iota
	OpSliceFrom
	OpSpliceDropPrefix
	OpSwapWithFirst
)

var opShort = map[Op]string{
	OpReverse:          "rv",
	OpSliceFrom:        "sl",
	OpSpliceDropPrefix: "sp",
	OpSwapWithFirst:    "sw",
}

// Token is a single decoded operation. Arg is ignored for OpReverse.
type Token struct {
	Op  Op
	Arg int
}

// String renders the compact form used in logs: rv, sl2, sp3, sw7.
func (t Token) String() string {
	short, ok := opShort[t.Op]
	if !ok {
		return fmt.Sprintf("op(%d)", int(t.Op))
	}
	if t.Op == OpReverse {
		return short
	}
	return short + strconv.Itoa(t.Arg)
}

// FormatTokens joins tokens with spaces.
func FormatTokens(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// ApplyTokens runs tokens over the characters of signature in order.
// Any index outside the current sequence fails the whole call; nothing is
// clamped or wrapped.
func ApplyTokens(tokens []Token, signature string) (string, error) {
	sig := []rune(signature)
	for i, t := range tokens {
		switch t.Op {
		case OpReverse:
			for l, r := 0, len(sig)-1; l < r; l, r = l+1, r-1 {
				sig[l], sig[r] = sig[r], sig[l]
			}
		case OpSliceFrom, OpSpliceDropPrefix:
			if t.Arg < 0 || t.Arg > len(sig) {
				return "", outOfRange(i, t, len(sig))
			}
			sig = sig[t.Arg:]
		case OpSwapWithFirst:
			if t.Arg < 0 || t.Arg >= len(sig) {
				return "", outOfRange(i, t, len(sig))
			}
			sig[0], sig[t.Arg] = sig[t.Arg], sig[0]
		default:
			return "", NewError(ErrCodeTokenGrammarMismatch, "unknown token", t.String())
		}
	}
	return string(sig), nil
}

func outOfRange(pos int, t Token, length int) error {
	return NewError(ErrCodeIndexOutOfRange, "token index outside signature", map[string]any{
		"token":    t.String(),
		"position": pos,
		"length":   length,
	})
}
