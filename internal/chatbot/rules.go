package chatbot

import (
	"fmt"
	"strings"

	"fraud-advisor/backend/pkg/logger"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// RuleSpec is one named CEL expression
type RuleSpec struct {
	Name string
	Expr string
}

// ParseRuleSpecs reads "name=expr;name2=expr2". Empty input yields no rules.
func ParseRuleSpecs(s string) ([]RuleSpec, error) {
	var specs []RuleSpec
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, expr, ok := strings.Cut(part, "=")
		name, expr = strings.TrimSpace(name), strings.TrimSpace(expr)
		if !ok || name == "" || expr == "" {
			return nil, fmt.Errorf("malformed escalation rule %q, want name=expression", part)
		}
		specs = append(specs, RuleSpec{Name: name, Expr: expr})
	}
	return specs, nil
}

type compiledRule struct {
	name    string
	program cel.Program
}

// RuleSet evaluates escalation override rules in declaration order
type RuleSet struct {
	rules []compiledRule
	log   *logger.Logger
}

func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("risk", cel.StringType),
		cel.Variable("risk_rank", cel.IntType),
		cel.Variable("fraud_type", cel.StringType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("factors", cel.ListType(cel.StringType)),
		cel.Variable("keywords", cel.ListType(cel.StringType)),
	)
}

// NewRuleSet compiles every spec; any compile error or non-bool expression fails
func NewRuleSet(specs []RuleSpec, log *logger.Logger) (*RuleSet, error) {
	env, err := newRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	rs := &RuleSet{log: log}
	for _, spec := range specs {
		ast, iss := env.Compile(spec.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("escalation rule %s: %w", spec.Name, iss.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("escalation rule %s must evaluate to bool, got %s", spec.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("escalation rule %s: %w", spec.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{name: spec.Name, program: prg})
	}
	return rs, nil
}

// Len returns the number of compiled rules
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// FirstMatch returns the name of the first rule that evaluates to true.
// Evaluation errors are logged and treated as no match.
func (rs *RuleSet) FirstMatch(c Classification, factors []string) (string, bool) {
	if rs.Len() == 0 {
		return "", false
	}
	if factors == nil {
		factors = []string{}
	}
	keywords := c.MatchedKeywords
	if keywords == nil {
		keywords = []string{}
	}

	activation := map[string]any{
		"risk":       string(c.RiskLevel),
		"risk_rank":  int64(c.RiskLevel.Rank()),
		"fraud_type": string(c.FraudType),
		"confidence": c.Confidence,
		"factors":    factors,
		"keywords":   keywords,
	}

	for _, r := range rs.rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			rs.log.Warn("Escalation rule evaluation failed", "rule", r.name, "error", err.Error())
			continue
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			return r.name, true
		}
	}
	return "", false
}
