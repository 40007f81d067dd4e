package repository

// Schema definitions for the decision audit log.
// Compatible with both SQLite and PostgreSQL.

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    tier TEXT,
    status INTEGER NOT NULL,
    probability REAL NOT NULL DEFAULT 0,
    payout REAL NOT NULL DEFAULT 0,
    payouts TEXT,
    delay_minutes INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_fingerprint ON decisions(fingerprint);
CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(status);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
`

// AllSchemas returns every schema statement in migration order.
func AllSchemas() []string {
	return []string{
		schemaDecisions,
	}
}
