// Package store persists authorization records in SQLite and supplies the
// pre-filtered candidate lists the matcher consumes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentid-labs/a2a-authd/internal/authz"
)

// Sentinel errors distinguishing business outcomes from infrastructure
// failures. Anything else returned by Store methods is an infrastructure
// error and maps to the generic "Database error" response.
var (
	ErrNotFound   = errors.New("authorization not found")
	ErrNotPending = errors.New("authorization is not pending")
)

// Store provides database operations for authorization records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and ensures
// the schema exists. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent request handling.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity, used by the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new authorization request in pending status and returns
// the stored record. An empty ID is assigned a fresh "auth_" identifier.
func (s *Store) Create(ctx context.Context, a *authz.Authorization) (*authz.Authorization, error) {
	if a.ID == "" {
		a.ID = "auth_" + uuid.NewString()
	}
	if a.Status == "" {
		a.Status = authz.StatusPending
	}

	permsJSON, err := json.Marshal(a.Permissions)
	if err != nil {
		return nil, fmt.Errorf("encoding permissions: %w", err)
	}
	constraintsJSON, err := encodeConstraints(a.Constraints)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	a.CreatedAt = now
	a.UpdatedAt = now

	var validUntil any
	if a.ValidUntil != nil {
		validUntil = a.ValidUntil.UTC().Unix()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO authorizations
			(id, requester_credential_id, grantor_credential_id, permissions,
			 constraints, scope, status, message, valid_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RequesterCredentialID, a.GrantorCredentialID, string(permsJSON),
		constraintsJSON, a.Scope, a.Status, a.Message, validUntil,
		now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("inserting authorization: %w", err)
	}
	return a, nil
}

// Get returns the authorization with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*authz.Authorization, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	a, err := scanAuthorization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListFilter narrows List results. Role is "requester", "grantor", or empty
// for either side of the credential.
type ListFilter struct {
	CredentialID string
	Role         string
	Status       string
	Limit        int
}

// List returns authorizations matching the filter, most recent first, along
// with the total match count.
func (s *Store) List(ctx context.Context, f ListFilter) ([]authz.Authorization, int, error) {
	var conds []string
	var args []any

	switch f.Role {
	case "requester":
		conds = append(conds, "requester_credential_id = ?")
		args = append(args, f.CredentialID)
	case "grantor":
		conds = append(conds, "grantor_credential_id = ?")
		args = append(args, f.CredentialID)
	default:
		if f.CredentialID != "" {
			conds = append(conds, "(requester_credential_id = ? OR grantor_credential_id = ?)")
			args = append(args, f.CredentialID, f.CredentialID)
		}
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM authorizations"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting authorizations: %w", err)
	}

	query := selectColumns + where + " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing authorizations: %w", err)
	}
	defer rows.Close()

	var out []authz.Authorization
	for rows.Next() {
		a, err := scanAuthorization(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// Respond resolves a pending authorization request as the grantor. Approval
// freezes permissions and constraints; afterwards only Revoke mutates the
// record. Returns ErrNotPending when the request was already resolved.
func (s *Store) Respond(ctx context.Context, id string, approved bool, message string) (*authz.Authorization, error) {
	status := authz.StatusDenied
	if approved {
		status = authz.StatusApproved
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE authorizations SET status = ?, message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, message, time.Now().UTC().Unix(), id, authz.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("updating authorization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating authorization: %w", err)
	}
	if n == 0 {
		// Either missing or already resolved; look up which.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotPending
	}
	return s.Get(ctx, id)
}

// Revoke marks an authorization revoked. Revoking an already revoked or
// denied record is a no-op that still succeeds.
func (s *Store) Revoke(ctx context.Context, id string) (*authz.Authorization, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE authorizations SET status = ?, updated_at = ? WHERE id = ?
	`, authz.StatusRevoked, time.Now().UTC().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("revoking authorization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("revoking authorization: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Candidates returns the approved, unexpired authorizations from grantor to
// requester in grant order. This is the matcher's candidate feed, pre-filtered
// per its contract so the matcher never re-validates status or expiry.
func (s *Store) Candidates(ctx context.Context, requesterID, grantorID string) ([]authz.Authorization, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE requester_credential_id = ?
		  AND grantor_credential_id = ?
		  AND status = ?
		  AND (valid_until IS NULL OR valid_until > ?)
		ORDER BY created_at ASC, rowid ASC
	`, requesterID, grantorID, authz.StatusApproved, time.Now().UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var out []authz.Authorization
	for rows.Next() {
		a, err := scanAuthorization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// encodeConstraints renders a constraint set as JSON, or NULL when nil.
func encodeConstraints(cs *authz.ConstraintSet) (any, error) {
	if cs == nil {
		return nil, nil
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return nil, fmt.Errorf("encoding constraints: %w", err)
	}
	return string(b), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const selectColumns = `
	SELECT id, requester_credential_id, grantor_credential_id, permissions,
	       constraints, scope, status, message, valid_until, created_at, updated_at
	FROM authorizations`

// scanAuthorization decodes one row into an Authorization.
func scanAuthorization(row rowScanner) (*authz.Authorization, error) {
	var (
		a               authz.Authorization
		permsJSON       string
		constraintsJSON sql.NullString
		message         sql.NullString
		scope           sql.NullString
		validUntil      sql.NullInt64
		createdAt       int64
		updatedAt       int64
	)

	err := row.Scan(&a.ID, &a.RequesterCredentialID, &a.GrantorCredentialID,
		&permsJSON, &constraintsJSON, &scope, &a.Status, &message,
		&validUntil, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning authorization: %w", err)
	}

	if err := json.Unmarshal([]byte(permsJSON), &a.Permissions); err != nil {
		return nil, fmt.Errorf("decoding permissions for %s: %w", a.ID, err)
	}
	if constraintsJSON.Valid && constraintsJSON.String != "" {
		var cs authz.ConstraintSet
		if err := json.Unmarshal([]byte(constraintsJSON.String), &cs); err != nil {
			return nil, fmt.Errorf("decoding constraints for %s: %w", a.ID, err)
		}
		a.Constraints = &cs
	}
	a.Scope = scope.String
	a.Message = message.String
	if validUntil.Valid {
		t := time.Unix(validUntil.Int64, 0).UTC()
		a.ValidUntil = &t
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}
