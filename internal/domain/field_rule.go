package domain

import "time"

// FieldRule configures an extra field kind for the classifier.
// Custom rules are evaluated after the built-in cpf, cnpj and date kinds,
// in ascending Priority, and only see keys no built-in kind claimed.
type FieldRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// CEL boolean expression over `key` (lower-cased) and `raw_key`
	Expression string `json:"expression"`

	// Validator is one of the registered validators: cpf, cnpj, cnpj_checksum, date
	Validator string `json:"validator"`

	// Label templates; %s is replaced by the field value
	ValidLabel string `json:"validLabel"`
	FailLabel  string `json:"failLabel"`

	// Severity selects the bucket for failures: "invalid" or "warning"
	Severity Severity `json:"severity"`

	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Severity is the bucket a failed field lands in.
type Severity string

const (
	SeverityInvalid Severity = "invalid"
	SeverityWarning Severity = "warning"
)

// GlobalTenantID is used for field rules that apply to all tenants.
const GlobalTenantID = "*"
