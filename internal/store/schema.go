package store

// schema creates the authorization table. Permissions and constraints are
// stored as JSON text: they are opaque to SQL and frozen at approval time, so
// there is nothing to join against.
const schema = `
CREATE TABLE IF NOT EXISTS authorizations (
	id                      TEXT PRIMARY KEY,
	requester_credential_id TEXT NOT NULL,
	grantor_credential_id   TEXT NOT NULL,
	permissions             TEXT NOT NULL,
	constraints             TEXT,
	scope                   TEXT,
	status                  TEXT NOT NULL DEFAULT 'pending',
	message                 TEXT,
	valid_until             INTEGER,
	created_at              INTEGER NOT NULL,
	updated_at              INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_authorizations_parties
	ON authorizations (requester_credential_id, grantor_credential_id, status);

CREATE INDEX IF NOT EXISTS idx_authorizations_grantor
	ON authorizations (grantor_credential_id, status);
`
