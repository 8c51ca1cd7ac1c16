package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/deskmate/internal/domain"
	"github.com/ashureev/deskmate/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetry}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS clients (
		client_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		business_name TEXT,
		tax_id TEXT,
		entity_type TEXT,
		onboarded_at INTEGER,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cases (
		case_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cases_client ON cases(client_id, status);

	CREATE TABLE IF NOT EXISTS categories (
		category_id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		title TEXT NOT NULL,
		due_at INTEGER,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_pending ON tasks(client_id) WHERE completed_at IS NULL;

	CREATE TABLE IF NOT EXISTS payments (
		payment_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		paid_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id, paid_at);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id TEXT,
		description TEXT NOT NULL,
		priority TEXT NOT NULL,
		audience TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activities_client ON activities(client_id, created_at);

	CREATE TABLE IF NOT EXISTS faq (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS consultation_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id TEXT NOT NULL,
		meeting_type TEXT NOT NULL,
		slot TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

// GetClient retrieves a client by id.
func (s *SQLiteStore) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	query := `
		SELECT client_id, display_name, business_name, tax_id, entity_type,
		       onboarded_at, last_seen_at, created_at, updated_at
		FROM clients WHERE client_id = ?`

	var c domain.Client
	var business, taxID, entity sql.NullString
	var onboarded sql.NullInt64
	var lastSeen, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, clientID).Scan(
		&c.ClientID, &c.DisplayName, &business, &taxID, &entity,
		&onboarded, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan client row: %w", err)
	}

	c.BusinessName = business.String
	c.TaxID = taxID.String
	c.EntityType = entity.String
	c.OnboardedAt = fromNullUnix(onboarded)
	c.LastSeenAt = time.Unix(lastSeen, 0)
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// UpsertClient creates or updates a client record.
func (s *SQLiteStore) UpsertClient(ctx context.Context, c *domain.Client) error {
	query := `
	INSERT INTO clients (client_id, display_name, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(client_id) DO UPDATE SET
		display_name = excluded.display_name,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		c.ClientID, c.DisplayName,
		c.LastSeenAt.Unix(), c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a client.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, clientID string, lastSeen time.Time) error {
	query := `UPDATE clients SET last_seen_at = ?, updated_at = ? WHERE client_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), clientID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "client_id", clientID)
	}
	return nil
}

// UpdateProfile writes the non-empty profile fields.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, clientID string, f domain.ProfileFields) error {
	if f.Empty() {
		return nil
	}
	query := `
	UPDATE clients SET
		business_name = COALESCE(NULLIF(?, ''), business_name),
		tax_id = COALESCE(NULLIF(?, ''), tax_id),
		entity_type = COALESCE(NULLIF(?, ''), entity_type),
		updated_at = ?
	WHERE client_id = ?`

	now := time.Now().Unix()
	return shared.RetryOnConflict(ctx, s.retry, "update profile", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin profile update: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		result, err := tx.ExecContext(ctx, query, f.BusinessName, f.TaxID, f.EntityType, now, clientID)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("update profile for %s: %w", clientID, ErrNotFound)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE clients SET onboarded_at = ?
			WHERE client_id = ? AND onboarded_at IS NULL
			  AND COALESCE(business_name, '') != ''
			  AND COALESCE(tax_id, '') != ''
			  AND COALESCE(entity_type, '') != ''`, now, clientID)
		if err != nil {
			return fmt.Errorf("mark onboarded: %w", err)
		}
		return tx.Commit()
	})
}

// RecordActivity appends an activity entry. Writes are retried on SQLite
// busy errors since several sessions may log at once.
func (s *SQLiteStore) RecordActivity(ctx context.Context, a *domain.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	var clientID any
	if a.ClientID != "" {
		clientID = a.ClientID
	}
	query := `INSERT INTO activities (client_id, description, priority, audience, created_at) VALUES (?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, s.retry, "record activity", func() error {
		result, err := s.db.ExecContext(ctx, query,
			clientID, a.Description, string(a.Priority), string(a.Audience), a.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("activity id: %w", err)
		}
		a.ID = id
		return nil
	})
}

// ListActivities returns the newest activity entries for a client.
func (s *SQLiteStore) ListActivities(ctx context.Context, clientID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, client_id, description, priority, audience, created_at
		FROM activities WHERE client_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer closeRows(rows, "activities")

	var out []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var cid sql.NullString
		var priority, audience string
		var createdAt int64
		if err := rows.Scan(&a.ID, &cid, &a.Description, &priority, &audience, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		a.ClientID = cid.String
		a.Priority = domain.Priority(priority)
		a.Audience = domain.Audience(audience)
		a.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

// RecordConsultation stores a consultation request.
func (s *SQLiteStore) RecordConsultation(ctx context.Context, r *domain.ConsultationRequest) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	query := `INSERT INTO consultation_requests (client_id, meeting_type, slot, created_at) VALUES (?, ?, ?, ?)`
	return shared.RetryOnConflict(ctx, s.retry, "record consultation", func() error {
		if _, err := s.db.ExecContext(ctx, query, r.ClientID, r.MeetingType, r.Slot, r.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("insert consultation request: %w", err)
		}
		return nil
	})
}

// ListConsultations returns a client's consultation requests, newest first.
func (s *SQLiteStore) ListConsultations(ctx context.Context, clientID string) ([]domain.ConsultationRequest, error) {
	query := `
		SELECT client_id, meeting_type, slot, created_at
		FROM consultation_requests WHERE client_id = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("query consultations: %w", err)
	}
	defer closeRows(rows, "consultations")

	var out []domain.ConsultationRequest
	for rows.Next() {
		var r domain.ConsultationRequest
		var createdAt int64
		if err := rows.Scan(&r.ClientID, &r.MeetingType, &r.Slot, &createdAt); err != nil {
			return nil, fmt.Errorf("scan consultation row: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultations: %w", err)
	}
	return out, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}
