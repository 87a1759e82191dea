package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// The UNIQUE constraint on last_name backs the duplicate name check when
// several sessions write to the same database.
const schema = `
CREATE TABLE IF NOT EXISTS members (
	member_number SERIAL PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL CONSTRAINT members_last_name_key UNIQUE,
	birthday      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS memberships (
	id            BIGSERIAL PRIMARY KEY,
	member_number INT NOT NULL REFERENCES members (member_number) ON DELETE CASCADE,
	begin_at      TIMESTAMPTZ NOT NULL,
	end_at        TIMESTAMPTZ NOT NULL,
	CHECK (end_at >= begin_at)
);

CREATE INDEX IF NOT EXISTS memberships_member_number_idx ON memberships (member_number);

CREATE TABLE IF NOT EXISTS deposits (
	id            BIGSERIAL PRIMARY KEY,
	membership_id BIGINT NOT NULL REFERENCES memberships (id) ON DELETE CASCADE,
	amount        NUMERIC(14, 2) NOT NULL
);

CREATE INDEX IF NOT EXISTS deposits_membership_id_idx ON deposits (membership_id);
`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*PostgresMembershipStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresMembershipStore(db), nil
}
