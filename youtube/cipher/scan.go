package cipher

import (
	"regexp"
)

type literal int

const (
	litNone literal = iota
	litDoubleQuote
	litSingleQuote
	litBacktick
	litRegex
)

// regexLookback is how far back ScanBalanced looks to tell a regex literal
// from a division operator.
const regexLookback = 10

var regexStartPrefix = regexp.MustCompile(`(^|[\[{:;,])\s?$`)

func literalFor(ch byte) literal {
	switch ch {
	case '"':
		return litDoubleQuote
	case '\'':
		return litSingleQuote
	case '`':
		return litBacktick
	case '/':
		return litRegex
	}
	return litNone
}

var literalEnd = map[literal]byte{
	litDoubleQuote: '"',
	litSingleQuote: '\'',
	litBacktick:    '`',
	litRegex:       '/',
}

// ScanBalanced returns text[start:end+1] where end is the bracket closing
// the '[' or '{' at text[start]. String, template and regex literals are
// skipped, so brackets inside them are not counted.
//
// A '/' starts a regex literal only when the few characters before it end
// in one of "[{:;," (optionally followed by one space) or reach the start of
// the span. This is an approximation and can misread unusual input.
func ScanBalanced(text string, start int) (string, error) {
	if start < 0 || start >= len(text) {
		return "", NewError(ErrCodeUnsupportedStart, "start index out of range", start)
	}
	var open, close byte
	switch text[start] {
	case '[':
		open, close = '[', ']'
	case '{':
		open, close = '{', '}'
	default:
		return "", NewError(ErrCodeUnsupportedStart, "span must begin with [ or {", string(text[start]))
	}

	span := text[start:]
	counter := 0
	escaped := false
	state := litNone

	for i := 0; i < len(span); i++ {
		ch := span[i]

		if !escaped && state != litNone && ch == literalEnd[state] {
			state = litNone
			continue
		} else if !escaped && state == litNone {
			if lit := literalFor(ch); lit != litNone {
				if lit != litRegex || regexStartPrefix.MatchString(span[max(0, i-regexLookback):i]) {
					state = lit
					continue
				}
			}
		}

		escaped = ch == '\\' && !escaped

		if state != litNone {
			continue
		}

		switch ch {
		case open:
			counter++
		case close:
			counter--
		}
		if counter == 0 {
			return span[:i+1], nil
		}
	}

	return "", NewError(ErrCodeUnbalancedBrackets, "no matching closing bracket", string(open))
}
