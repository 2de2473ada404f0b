// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveFieldRule inserts or updates a field rule with tenant isolation.
// The creation time of an existing rule is kept.
func (r *SQLRepository) SaveFieldRule(ctx context.Context, tenantID string, rule *domain.FieldRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO field_rules (
			id, tenant_id, name, description, expression, validator,
			valid_label, fail_label, severity, priority, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			validator = excluded.validator,
			valid_label = excluded.valid_label,
			fail_label = excluded.fail_label,
			severity = excluded.severity,
			priority = excluded.priority,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Expression, rule.Validator,
		rule.ValidLabel, rule.FailLabel, string(rule.Severity),
		rule.Priority, enabled,
		now, now,
	)
	if err != nil {
		return err
	}

	rule.TenantID = tenantID
	rule.UpdatedAt = now
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	return nil
}

const fieldRuleColumns = `
	id, tenant_id, name, description, expression, validator,
	valid_label, fail_label, severity, priority, enabled, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFieldRule(row rowScanner) (*domain.FieldRule, error) {
	var rule domain.FieldRule
	var description sql.NullString
	var severity string
	var enabled int

	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description,
		&rule.Expression, &rule.Validator,
		&rule.ValidLabel, &rule.FailLabel, &severity,
		&rule.Priority, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Severity = domain.Severity(severity)
	rule.Enabled = enabled == 1
	return &rule, nil
}

// GetFieldRule retrieves an enabled field rule with tenant isolation.
func (r *SQLRepository) GetFieldRule(ctx context.Context, tenantID string, ruleID string) (*domain.FieldRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + fieldRuleColumns + `
		FROM field_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	rule, err := scanFieldRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListFieldRules retrieves the enabled field rules that apply to a tenant:
// its own rules plus the global ones. A tenant rule shadows a global rule
// with the same id. Results are ordered by priority, then id.
func (r *SQLRepository) ListFieldRules(ctx context.Context, tenantID string) ([]*domain.FieldRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + fieldRuleColumns + `
		FROM field_rules
		WHERE (tenant_id = ? OR tenant_id = ?) AND enabled = 1
		ORDER BY priority, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, domain.GlobalTenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*domain.FieldRule)
	for rows.Next() {
		rule, err := scanFieldRule(rows)
		if err != nil {
			return nil, err
		}
		if existing, ok := byID[rule.ID]; ok && existing.TenantID != domain.GlobalTenantID {
			continue
		}
		byID[rule.ID] = rule
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rules := make([]*domain.FieldRule, 0, len(byID))
	for _, rule := range byID {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})

	return rules, nil
}

// DeleteFieldRule soft-deletes a field rule by setting enabled = 0.
func (r *SQLRepository) DeleteFieldRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE field_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
