package condition

import (
	"fmt"
	"strings"
)

// Rewrite validates a condition and re-emits it for the predicate engine.
// The output preserves the source spacing; only individual tokens are
// replaced. Syntax errors are reported before any rewriting starts.
func Rewrite(cond string) (string, error) {
	toks, err := lex(cond)
	if err != nil {
		return "", err
	}
	if len(toks) == 0 {
		return "", fmt.Errorf("%w: empty condition", ErrSyntax)
	}
	if err := validate(toks); err != nil {
		return "", err
	}
	repl, err := replacements(toks)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(cond) + 8)
	pos := 0
	for i, t := range toks {
		b.WriteString(cond[pos:t.start])
		if repl[i] != "" {
			b.WriteString(repl[i])
		} else {
			b.WriteString(t.text)
		}
		pos = t.end
	}
	b.WriteString(cond[pos:])
	return b.String(), nil
}

// validate enforces the adjacency rules for logical operators: & and | must
// directly follow a closing parenthesis, and the operand after & | (or
// after a ~ that itself follows & |) must open with ~ or (.
func validate(toks []token) error {
	for i, t := range toks {
		if t.kind != tokOp {
			continue
		}
		switch t.text {
		case "&", "|":
			if i == 0 || !isOp(toks[i-1], ")") {
				return fmt.Errorf("%w: %q must be preceded by a closing parenthesis", ErrSyntax, t.text)
			}
			if err := checkOperandStart(toks, i); err != nil {
				return err
			}
		case "~":
			if i > 0 && (isOp(toks[i-1], "&") || isOp(toks[i-1], "|")) {
				if err := checkOperandStart(toks, i); err != nil {
					return err
				}
			}
		}
	}
	if last := toks[len(toks)-1]; last.kind == tokOp {
		switch last.text {
		case "&", "|", "~":
			return fmt.Errorf("%w: condition ends with %q", ErrSyntax, last.text)
		}
	}
	return nil
}

func checkOperandStart(toks []token, i int) error {
	if i+1 >= len(toks) {
		return fmt.Errorf("%w: missing operand after %q", ErrSyntax, toks[i].text)
	}
	if next := toks[i+1]; !isOp(next, "~") && !isOp(next, "(") {
		return fmt.Errorf("%w: %q must be followed by %q or %q, got %q", ErrSyntax, toks[i].text, "~", "(", next.text)
	}
	return nil
}

// celOps maps the source logical operators onto the engine's.
var celOps = map[string]string{"&": "&&", "|": "||", "~": "!"}

// replacements computes the per-token rewrites: logical operators, byte
// literal prefixes and nan comparisons. A nan operand is only legal as
// <name> == nan or <name> != nan; the rewrite swaps the operator and
// replaces nan with the column, so "x != nan" evaluates "x == x".
func replacements(toks []token) ([]string, error) {
	repl := make([]string, len(toks))
	eff := func(i int) string {
		if repl[i] != "" {
			return repl[i]
		}
		return toks[i].text
	}
	for i, t := range toks {
		switch t.kind {
		case tokOp:
			repl[i] = celOps[t.text]
		case tokString:
			if !t.bytes {
				repl[i] = "b" + t.text
			}
		case tokName:
			if !strings.EqualFold(t.text, "nan") {
				continue
			}
			if i < 2 || toks[i-2].kind != tokName ||
				(!isOp(toks[i-1], "==") && !isOp(toks[i-1], "!=")) {
				return nil, fmt.Errorf("%w: nan is only valid in <column> == nan or <column> != nan", ErrSemantic)
			}
			if toks[i-1].text == "==" {
				repl[i-1] = "!="
			} else {
				repl[i-1] = "=="
			}
			repl[i] = eff(i - 2)
		}
	}
	return repl, nil
}
