package repositories

import (
	"context"
	"fmt"
)

const identitySchemaSQL = `
CREATE TABLE IF NOT EXISTS principals (
	id                            UUID PRIMARY KEY,
	email                         TEXT NOT NULL,
	display_name                  TEXT NOT NULL,
	phone_number                  TEXT,
	password_hash                 TEXT NOT NULL,
	company_id                    UUID,
	condominium_id                UUID,
	unit_id                       UUID,
	document_id                   TEXT NOT NULL,
	document_type                 TEXT NOT NULL,
	email_confirmed               BOOLEAN NOT NULL DEFAULT FALSE,
	email_confirmation_token_hash TEXT,
	lockout_end                   TIMESTAMPTZ,
	created_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_by                    UUID,
	updated_at                    TIMESTAMPTZ,
	updated_by                    UUID,
	deactivated_at                TIMESTAMPTZ,
	deactivated_by                UUID,
	row_version                   BIGINT NOT NULL DEFAULT 1,
	CONSTRAINT principals_deactivation_pair CHECK ((deactivated_at IS NULL) = (deactivated_by IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS principals_email_key ON principals (lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS principals_document_id_key ON principals (document_id);
CREATE INDEX IF NOT EXISTS idx_principals_company_id ON principals (company_id);
CREATE INDEX IF NOT EXISTS idx_principals_condominium_id ON principals (condominium_id);

CREATE TABLE IF NOT EXISTS principal_roles (
	principal_id UUID NOT NULL REFERENCES principals (id),
	role         TEXT NOT NULL,
	PRIMARY KEY (principal_id, role)
);

CREATE TABLE IF NOT EXISTS companies (
	id                 UUID PRIMARY KEY,
	name               TEXT NOT NULL,
	owner_principal_id UUID NOT NULL,
	contact_email      TEXT NOT NULL,
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_by         UUID,
	updated_at         TIMESTAMPTZ,
	updated_by         UUID,
	deleted_at         TIMESTAMPTZ,
	deleted_by         UUID,
	row_version        BIGINT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_companies_owner ON companies (owner_principal_id);

CREATE TABLE IF NOT EXISTS sign_in_attempts (
	email         TEXT PRIMARY KEY,
	attempt_count INT NOT NULL DEFAULT 0,
	locked_until  TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Tenancy tables hold identity-store ids as bare UUID columns with no
// foreign keys; the stores live in separate databases.
const tenancySchemaSQL = `
CREATE TABLE IF NOT EXISTS condominiums (
	id                   UUID PRIMARY KEY,
	company_id           UUID NOT NULL,
	manager_principal_id UUID,
	name                 TEXT NOT NULL,
	address              TEXT NOT NULL DEFAULT '',
	city                 TEXT NOT NULL DEFAULT '',
	zip_code             TEXT NOT NULL DEFAULT '',
	registry_number      TEXT NOT NULL,
	is_active            BOOLEAN NOT NULL DEFAULT TRUE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_by           UUID,
	updated_at           TIMESTAMPTZ,
	updated_by           UUID,
	deleted_at           TIMESTAMPTZ,
	deleted_by           UUID,
	row_version          BIGINT NOT NULL DEFAULT 1,
	CONSTRAINT condominiums_company_registry_key UNIQUE (company_id, registry_number)
);
CREATE INDEX IF NOT EXISTS idx_condominiums_manager ON condominiums (manager_principal_id);

CREATE TABLE IF NOT EXISTS units (
	id                 UUID PRIMARY KEY,
	condominium_id     UUID NOT NULL REFERENCES condominiums (id),
	owner_principal_id UUID,
	unit_number        TEXT NOT NULL,
	floor              TEXT NOT NULL DEFAULT '',
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_by         UUID,
	updated_at         TIMESTAMPTZ,
	updated_by         UUID,
	deleted_at         TIMESTAMPTZ,
	deleted_by         UUID,
	row_version        BIGINT NOT NULL DEFAULT 1,
	CONSTRAINT units_condominium_unit_number_key UNIQUE (condominium_id, unit_number)
);
CREATE INDEX IF NOT EXISTS idx_units_owner ON units (owner_principal_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          UUID PRIMARY KEY,
	actor_id    UUID NOT NULL,
	action      TEXT NOT NULL,
	target_id   UUID NOT NULL,
	target_type TEXT NOT NULL,
	details     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_target ON audit_logs (target_id, created_at);
`

// InitIdentitySchema creates the identity store tables if missing.
func InitIdentitySchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, identitySchemaSQL); err != nil {
		return fmt.Errorf("init identity schema: %w", err)
	}
	return nil
}

// InitTenancySchema creates the tenancy store tables if missing.
func InitTenancySchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, tenancySchemaSQL); err != nil {
		return fmt.Errorf("init tenancy schema: %w", err)
	}
	return nil
}
