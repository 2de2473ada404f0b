package classify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/validate"
)

// Validators that custom field rules can reference by name.
var validators = map[string]Check{
	"cpf":           func(v string, _ time.Time) bool { return validate.CPF(v) },
	"cnpj":          func(v string, _ time.Time) bool { return validate.CNPJ(v) },
	"cnpj_checksum": func(v string, _ time.Time) bool { return validate.CNPJChecksum(v) },
	"date":          validate.DateAt,
}

// Validators returns the names custom field rules may use, sorted.
func Validators() []string {
	names := make([]string, 0, len(validators))
	for name := range validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compiler turns field rules into field kinds.
// Rule expressions are CEL booleans over `key` (lower-cased) and `raw_key`.
type Compiler struct {
	env *cel.Env
}

// NewCompiler creates a field rule compiler.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("raw_key", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{env: env}, nil
}

// Validate checks a rule without compiling it into a kind.
func (c *Compiler) Validate(rule *domain.FieldRule) error {
	_, err := c.Compile(rule)
	return err
}

// Compile compiles a single field rule.
func (c *Compiler) Compile(rule *domain.FieldRule) (FieldKind, error) {
	if rule == nil {
		return FieldKind{}, fmt.Errorf("field rule is required")
	}
	if rule.ID == "" {
		return FieldKind{}, fmt.Errorf("field rule id is required")
	}
	if isBuiltin(rule.ID) {
		return FieldKind{}, fmt.Errorf("field rule %s: id is reserved for a built-in kind", rule.ID)
	}

	check, ok := validators[rule.Validator]
	if !ok {
		return FieldKind{}, fmt.Errorf("field rule %s: unknown validator %q (expected one of %s)",
			rule.ID, rule.Validator, strings.Join(Validators(), ", "))
	}

	bucket := rule.Severity
	switch bucket {
	case "":
		bucket = domain.SeverityInvalid
	case domain.SeverityInvalid, domain.SeverityWarning:
	default:
		return FieldKind{}, fmt.Errorf("field rule %s: unknown severity %q", rule.ID, rule.Severity)
	}

	for _, tmpl := range []struct{ name, value string }{
		{"valid label", rule.ValidLabel},
		{"fail label", rule.FailLabel},
	} {
		if tmpl.value != "" && !strings.Contains(tmpl.value, "%s") {
			return FieldKind{}, fmt.Errorf("field rule %s: %s %q must contain %%s", rule.ID, tmpl.name, tmpl.value)
		}
	}

	ast, issues := c.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return FieldKind{}, fmt.Errorf("failed to compile field rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return FieldKind{}, fmt.Errorf("field rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return FieldKind{}, fmt.Errorf("failed to create program for field rule %s: %w", rule.ID, err)
	}

	validLabel := rule.ValidLabel
	if validLabel == "" {
		validLabel = rule.Name + ": %s"
	}
	failLabel := rule.FailLabel
	if failLabel == "" {
		failLabel = rule.Name + " invalido: %s"
	}

	return FieldKind{
		ID: rule.ID,
		Match: func(key string) bool {
			out, _, err := program.Eval(map[string]any{
				"key":     strings.ToLower(key),
				"raw_key": key,
			})
			if err != nil {
				return false
			}
			matched, ok := out.(types.Bool)
			return ok && bool(matched)
		},
		Check:      check,
		ValidLabel: validLabel,
		FailLabel:  failLabel,
		FailBucket: bucket,
	}, nil
}

// CompileAll compiles the enabled rules in ascending priority.
// Ties are broken by ID so the order is stable across reloads.
func (c *Compiler) CompileAll(rules []*domain.FieldRule) ([]FieldKind, error) {
	enabled := make([]*domain.FieldRule, 0, len(rules))
	for _, r := range rules {
		if r != nil && r.Enabled {
			enabled = append(enabled, r)
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority < enabled[j].Priority
		}
		return enabled[i].ID < enabled[j].ID
	})

	kinds := make([]FieldKind, 0, len(enabled))
	for _, r := range enabled {
		kind, err := c.Compile(r)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
