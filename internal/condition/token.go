// Package condition compiles the boolean filter sublanguage used to select
// stored records. A condition is rewritten token by token into an expression
// for the native predicate engine: logical & | ~ become && || !, quoted
// string literals become byte literals and comparisons against nan collapse
// onto the column itself. Validation and rewriting are all-or-nothing; a
// condition is never partially applied.
package condition

import (
	"errors"
	"fmt"
)

// ErrSyntax marks malformed condition text: unknown characters, unterminated
// literals or logical operators without their required parentheses.
var ErrSyntax = errors.New("invalid condition syntax")

// ErrSemantic marks well-formed conditions with an invalid meaning, such as
// an ordering comparison against nan.
var ErrSemantic = errors.New("invalid condition")

type tokKind uint8

const (
	tokName tokKind = iota
	tokNumber
	tokString
	tokOp
)

// token is one lexeme with its byte span in the source, so the rewriter can
// splice replacements without disturbing surrounding text.
type token struct {
	kind       tokKind
	text       string
	start, end int
	bytes      bool // string literal already carried a b prefix
}

func isOp(t token, text string) bool {
	return t.kind == tokOp && t.text == text
}

var twoCharOps = [...]string{"<=", ">=", "==", "!="}

const singleCharOps = "()&|~<>+-*/%[]"

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isNameStart(c):
			j := i + 1
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			// A lone b directly before a quote is a byte-literal prefix.
			if j == i+1 && (c == 'b' || c == 'B') && j < len(src) && isQuote(src[j]) {
				end, err := scanString(src, j)
				if err != nil {
					return nil, err
				}
				toks = append(toks, token{tokString, src[i:end], i, end, true})
				i = end
				continue
			}
			toks = append(toks, token{tokName, src[i:j], i, j, false})
			i = j
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokNumber, src[i:j], i, j, false})
			i = j
		case isQuote(c):
			end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, src[i:end], i, end, false})
			i = end
		default:
			if i+1 < len(src) {
				two := src[i : i+2]
				matched := false
				for _, op := range twoCharOps {
					if two == op {
						toks = append(toks, token{tokOp, two, i, i + 2, false})
						i += 2
						matched = true
						break
					}
				}
				if matched {
					continue
				}
			}
			if isSingleOp(c) {
				toks = append(toks, token{tokOp, string(c), i, i + 1, false})
				i++
				continue
			}
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrSyntax, string(c), i)
		}
	}
	return toks, nil
}

func scanString(src string, start int) (int, error) {
	quote := src[start]
	i := start + 1
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, fmt.Errorf("%w: unterminated string literal at offset %d", ErrSyntax, start)
}

func scanNumber(src string, start int) (int, error) {
	i := start
	if src[i] == '0' && i+1 < len(src) && (src[i+1] == 'x' || src[i+1] == 'X') {
		i += 2
		j := i
		for j < len(src) && isHexDigit(src[j]) {
			j++
		}
		if j == i {
			return 0, fmt.Errorf("%w: malformed hex literal at offset %d", ErrSyntax, start)
		}
		return j, nil
	}
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j >= len(src) || !isDigit(src[j]) {
			return 0, fmt.Errorf("%w: malformed exponent at offset %d", ErrSyntax, start)
		}
		for j < len(src) && isDigit(src[j]) {
			j++
		}
		i = j
	}
	return i, nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isQuote(c byte) bool { return c == '\'' || c == '"' }

func isSingleOp(c byte) bool {
	for i := 0; i < len(singleCharOps); i++ {
		if singleCharOps[i] == c {
			return true
		}
	}
	return false
}
