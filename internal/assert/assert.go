// Package assert evaluates CEL threshold expressions against benchmark runs.
package assert

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/gezibash/dbbench/internal/bench"
	"github.com/gezibash/dbbench/internal/report"
)

// ErrViolated indicates an assertion evaluated to false.
var ErrViolated = errors.New("assertion violated")

// Assertion is a compiled boolean expression over report.Attributes.
type Assertion struct {
	expr    string
	program cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.CrossTypeNumericComparisons(true),
		cel.Variable(report.AttrBackend, cel.StringType),
		cel.Variable(report.AttrWriteOneMS, cel.DoubleType),
		cel.Variable(report.AttrWriteManyMS, cel.DoubleType),
		cel.Variable(report.AttrWriteManyRPS, cel.DoubleType),
		cel.Variable(report.AttrReadOneMS, cel.DoubleType),
		cel.Variable(report.AttrReadsP50MS, cel.DoubleType),
		cel.Variable(report.AttrReadsP95MS, cel.DoubleType),
		cel.Variable(report.AttrReadsP99MS, cel.DoubleType),
		cel.Variable(report.AttrReadsRPS, cel.DoubleType),
		cel.Variable(report.AttrReadsErrors, cel.IntType),
		cel.Variable(report.AttrFailed, cel.BoolType),
	)
}

// Compile parses and type-checks expr. Unknown attributes and non-bool
// expressions are rejected here rather than at evaluation.
func Compile(expr string) (*Assertion, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(types.BoolType) {
		return nil, fmt.Errorf("cel compile %q: result is %s, want bool", expr, ast.OutputType())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program %q: %w", expr, err)
	}

	return &Assertion{expr: expr, program: prog}, nil
}

// CompileAll compiles every expression, failing on the first bad one.
func CompileAll(exprs []string) ([]*Assertion, error) {
	out := make([]*Assertion, 0, len(exprs))
	for _, e := range exprs {
		a, err := Compile(e)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// String returns the source expression.
func (a *Assertion) String() string {
	return a.expr
}

// Check evaluates the assertion for run. It returns ErrViolated when the
// expression is false and the evaluation error when it cannot be evaluated.
func (a *Assertion) Check(run *bench.RunResult) error {
	out, _, err := a.program.Eval(report.Attributes(run))
	if err != nil {
		return fmt.Errorf("evaluate %q: %w", a.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return fmt.Errorf("evaluate %q: result is %s, want bool", a.expr, out.Type())
	}
	if !b {
		return ErrViolated
	}
	return nil
}

// Violation is one failed assertion for one backend.
type Violation struct {
	Backend string
	Expr    string
	Err     error
}

func (v Violation) String() string {
	if errors.Is(v.Err, ErrViolated) {
		return v.Expr
	}
	return fmt.Sprintf("%s (%v)", v.Expr, v.Err)
}

// CheckAll evaluates every assertion against every run.
func CheckAll(assertions []*Assertion, runs []bench.RunResult) []Violation {
	var out []Violation
	for i := range runs {
		for _, a := range assertions {
			if err := a.Check(&runs[i]); err != nil {
				out = append(out, Violation{Backend: runs[i].Backend, Expr: a.expr, Err: err})
			}
		}
	}
	return out
}
