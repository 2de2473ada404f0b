package repository

// Schema definitions for the Harpia database.
// Compatible with both SQLite and PostgreSQL.

// schemaFieldRules stores custom field kinds. Tenant "*" holds global rules.
const schemaFieldRules = `
CREATE TABLE IF NOT EXISTS field_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    validator TEXT NOT NULL,
    valid_label TEXT NOT NULL DEFAULT '',
    fail_label TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL DEFAULT 'invalid',
    priority INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_field_rules_tenant ON field_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_field_rules_enabled ON field_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaFieldRules,
	}
}
