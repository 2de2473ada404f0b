// Package classify routes extracted document fields to validators and buckets the outcomes.
package classify

import (
	"strings"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/validate"
)

// Built-in kind IDs. Custom field rules cannot reuse them.
const (
	KindCPF  = "cpf"
	KindCNPJ = "cnpj"
	KindDate = "date"
)

// Check validates a field value. now is the moment of validation.
type Check func(value string, now time.Time) bool

// FieldKind describes one class of field: how it is recognized by its key,
// how its value is validated and where the outcome is recorded.
type FieldKind struct {
	ID string

	// Match receives the key exactly as extracted.
	Match func(key string) bool
	Check Check

	// Label templates; %s is replaced by the field value.
	ValidLabel string
	FailLabel  string

	// FailBucket is the bucket a failed value lands in.
	FailBucket domain.Severity
}

func keyContains(substrs ...string) func(string) bool {
	return func(key string) bool {
		lower := strings.ToLower(key)
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// DefaultKinds returns the built-in kinds in precedence order:
// cpf, then cnpj, then date. Date failures are warnings, not invalid fields.
func DefaultKinds() []FieldKind {
	return []FieldKind{
		{
			ID:         KindCPF,
			Match:      keyContains("cpf"),
			Check:      func(v string, _ time.Time) bool { return validate.CPF(v) },
			ValidLabel: "CPF: %s",
			FailLabel:  "CPF invalido: %s",
			FailBucket: domain.SeverityInvalid,
		},
		{
			ID:         KindCNPJ,
			Match:      keyContains("cnpj"),
			Check:      func(v string, _ time.Time) bool { return validate.CNPJ(v) },
			ValidLabel: "CNPJ: %s",
			FailLabel:  "CNPJ invalido: %s",
			FailBucket: domain.SeverityInvalid,
		},
		{
			ID:         KindDate,
			Match:      keyContains("data", "date"),
			Check:      validate.DateAt,
			ValidLabel: "Data: %s",
			FailLabel:  "Data suspeita: %s",
			FailBucket: domain.SeverityWarning,
		},
	}
}

func isBuiltin(id string) bool {
	switch id {
	case KindCPF, KindCNPJ, KindDate:
		return true
	}
	return false
}

func label(template, value string) string {
	return strings.ReplaceAll(template, "%s", value)
}
