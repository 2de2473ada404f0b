package classify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
)

// Classifier validates the key/value pairs of extracted documents.
// The built-in kinds always run first; per-tenant custom kinds only see
// keys none of the built-in kinds matched.
type Classifier struct {
	mu       sync.RWMutex
	builtins []FieldKind
	custom   map[string][]FieldKind
	now      func() time.Time
}

// NewClassifier creates a classifier with the built-in kinds.
// A nil clock defaults to time.Now.
func NewClassifier(now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{
		builtins: DefaultKinds(),
		custom:   make(map[string][]FieldKind),
		now:      now,
	}
}

// ValidateFields validates extracted data with the built-in kinds only.
func ValidateFields(extracted domain.ExtractedData) domain.ValidationResult {
	return NewClassifier(nil).Validate("", extracted)
}

// Validate buckets every recognized field of extracted.
// Fields no kind recognizes are skipped. Buckets keep document order.
// A not-configured extraction payload has no pairs and yields empty buckets.
func (c *Classifier) Validate(tenantID string, extracted domain.ExtractedData) domain.ValidationResult {
	result, _ := c.ValidateWithOutcomes(tenantID, extracted)
	return result
}

// Outcome is the classification of one field, used for per-field metrics.
type Outcome struct {
	Kind   string
	Bucket string // valid, invalid, warning
}

// Outcomes reports how each recognized field of extracted was classified.
func (c *Classifier) Outcomes(tenantID string, extracted domain.ExtractedData) []Outcome {
	_, outcomes := c.ValidateWithOutcomes(tenantID, extracted)
	return outcomes
}

// ValidateWithOutcomes buckets extracted and reports the per-field outcomes
// of the same pass, against a single reading of the clock.
func (c *Classifier) ValidateWithOutcomes(tenantID string, extracted domain.ExtractedData) (domain.ValidationResult, []Outcome) {
	c.mu.RLock()
	custom := c.kindsFor(tenantID)
	c.mu.RUnlock()

	now := c.now()
	result := domain.NewValidationResult()
	var outcomes []Outcome

	for _, field := range extracted.KeyValuePairs {
		kind, ok := c.match(field.Key, custom)
		if !ok {
			continue
		}

		if kind.Check(field.Value, now) {
			result.ValidFields = append(result.ValidFields, label(kind.ValidLabel, field.Value))
			outcomes = append(outcomes, Outcome{Kind: kind.ID, Bucket: "valid"})
			continue
		}

		failed := label(kind.FailLabel, field.Value)
		if kind.FailBucket == domain.SeverityWarning {
			result.Warnings = append(result.Warnings, failed)
		} else {
			result.InvalidFields = append(result.InvalidFields, failed)
		}
		outcomes = append(outcomes, Outcome{Kind: kind.ID, Bucket: string(kind.FailBucket)})
	}

	return result, outcomes
}

func (c *Classifier) match(key string, custom []FieldKind) (FieldKind, bool) {
	for _, kind := range c.builtins {
		if kind.Match(key) {
			return kind, true
		}
	}
	for _, kind := range custom {
		if kind.Match(key) {
			return kind, true
		}
	}
	return FieldKind{}, false
}

// kindsFor returns the custom kinds of a tenant, falling back to the global set.
// Caller must hold c.mu.
func (c *Classifier) kindsFor(tenantID string) []FieldKind {
	if kinds, ok := c.custom[tenantID]; ok {
		return kinds
	}
	return c.custom[domain.GlobalTenantID]
}

// SetCustomKinds replaces the custom kinds of a tenant.
func (c *Classifier) SetCustomKinds(tenantID string, kinds []FieldKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(kinds) == 0 {
		delete(c.custom, tenantID)
		return
	}
	c.custom[tenantID] = kinds
}

// CustomCount returns the number of custom kinds loaded for a tenant.
func (c *Classifier) CustomCount(tenantID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kindsFor(tenantID))
}

// RuleLister lists the field rules that apply to a tenant.
type RuleLister interface {
	ListFieldRules(ctx context.Context, tenantID string) ([]*domain.FieldRule, error)
}

// Reload compiles the field rules of a tenant and swaps them in.
// On any compile error the previously loaded kinds stay active.
func (c *Classifier) Reload(ctx context.Context, compiler *Compiler, lister RuleLister, tenantID string) (int, error) {
	rules, err := lister.ListFieldRules(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to list field rules: %w", err)
	}

	kinds, err := compiler.CompileAll(rules)
	if err != nil {
		return 0, err
	}

	c.SetCustomKinds(tenantID, kinds)
	return len(kinds), nil
}
