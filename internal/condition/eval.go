package condition

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"gmdb/internal/schema"
)

// NewEnv builds a predicate environment with one declared variable per
// schema column. String-like columns are declared as bytes to match the
// byte-literal rewrite; numeric comparisons may mix int, uint and double.
func NewEnv(reg *schema.Registry) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, reg.Len()+1)
	opts = append(opts, cel.CrossTypeNumericComparisons(true))
	for _, col := range reg.Columns() {
		var t *cel.Type
		switch col.Kind {
		case schema.KindFloat:
			t = cel.DoubleType
		case schema.KindInt:
			t = cel.IntType
		case schema.KindUint:
			t = cel.UintType
		case schema.KindBool:
			t = cel.BoolType
		case schema.KindVector:
			t = cel.ListType(cel.DoubleType)
		default:
			t = cel.BytesType
		}
		opts = append(opts, cel.Variable(col.Name, t))
	}
	return cel.NewEnv(opts...)
}

// Compiled is a validated, rewritten and compiled condition, ready to
// evaluate against records.
type Compiled struct {
	Source string // the condition as written
	Expr   string // the rewritten engine expression

	reg  *schema.Registry
	prog cel.Program
}

// Compile rewrites a condition and compiles it against the column
// declarations of the registry. Unknown columns and type mismatches are
// reported as semantic errors.
func Compile(reg *schema.Registry, cond string) (*Compiled, error) {
	expr, err := Rewrite(cond)
	if err != nil {
		return nil, err
	}
	env, err := NewEnv(reg)
	if err != nil {
		return nil, fmt.Errorf("condition environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrSemantic, iss.Err())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("condition program: %w", err)
	}
	return &Compiled{Source: cond, Expr: expr, reg: reg, prog: prog}, nil
}

// Eval applies the condition to one record. Absent columns evaluate as
// their missing sentinels.
func (c *Compiled) Eval(rec schema.Record) (bool, error) {
	act := make(map[string]any, c.reg.Len())
	for _, col := range c.reg.Columns() {
		v, ok := rec[col.Name]
		if !ok {
			v = col.Sentinel()
		}
		switch col.Kind {
		case schema.KindString, schema.KindEnum, schema.KindDateTime:
			s, _ := v.(string)
			act[col.Name] = []byte(s)
		default:
			act[col.Name] = v
		}
	}
	out, _, err := c.prog.Eval(act)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", c.Source, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q is not a boolean condition", ErrSemantic, c.Source)
	}
	return b, nil
}
