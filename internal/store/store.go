package store

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/LdDl/headcount/internal/session"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// schema.sql creates ledger of processed sessions
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when session is not in the ledger
var ErrNotFound = errors.New("session not found")

// SessionRecord is a persisted summary of a counting session
type SessionRecord struct {
	SessionID        uuid.UUID `json:"session_id"`
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
	RobustCount      int       `json:"robust_count"`
	UniqueIDs        int       `json:"unique_tracked_ids_count"`
	FramesProcessed  int       `json:"frames_processed"`
	MaxCount         int       `json:"max_count"`
	MeanCount        float64   `json:"mean_count"`
	DetectorFailures int       `json:"detector_failures"`
	// Empty when session produced no proof frame
	ProofImage     string `json:"proof_image,omitempty"`
	ReferenceCount *int   `json:"reference_count,omitempty"`
	Decision       string `json:"decision,omitempty"`
}

// NewSessionRecord summarizes result of a session
func NewSessionRecord(result *session.Result, source string, createdAt time.Time) SessionRecord {
	record := SessionRecord{
		SessionID:        result.SessionID,
		Source:           source,
		CreatedAt:        createdAt,
		RobustCount:      result.RobustCount,
		UniqueIDs:        result.UniqueLifetimeIDCount,
		FramesProcessed:  result.Stats.FramesProcessed,
		MaxCount:         result.Stats.MaxCount,
		MeanCount:        result.Stats.MeanCount,
		DetectorFailures: result.Stats.DetectorFailures,
	}
	if result.ProofRecord != nil {
		record.ProofImage = result.ProofRecord.ProofImageName
	}
	return record
}

// Store is sqlite-backed ledger of sessions
type Store struct {
	*sql.DB
}

// Open opens (or creates) database and applies schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open database %s", path)
	}
	if path == ":memory:" {
		// Every connection would get its own in-memory database otherwise
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "can't apply schema")
	}
	return &Store{db}, nil
}

// Insert saves session record
func (s *Store) Insert(ctx context.Context, record SessionRecord) error {
	query := `
		INSERT INTO sessions (session_id, source, created_at, robust_count, unique_ids, frames_processed,
			max_count, mean_count, detector_failures, proof_image, reference_count, decision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var reference sql.NullInt64
	if record.ReferenceCount != nil {
		reference = sql.NullInt64{Int64: int64(*record.ReferenceCount), Valid: true}
	}
	_, err := s.ExecContext(ctx, query,
		record.SessionID.String(),
		record.Source,
		record.CreatedAt.UnixNano(),
		record.RobustCount,
		record.UniqueIDs,
		record.FramesProcessed,
		record.MaxCount,
		record.MeanCount,
		record.DetectorFailures,
		nullString(record.ProofImage),
		reference,
		nullString(record.Decision),
	)
	if err != nil {
		return errors.Wrapf(err, "can't insert session %s", record.SessionID)
	}
	return nil
}

// List returns at most limit latest sessions, newest first
func (s *Store) List(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		return []SessionRecord{}, nil
	}
	rows, err := s.QueryContext(ctx, selectSessions+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "can't query sessions")
	}
	defer rows.Close()

	records := make([]SessionRecord, 0, limit)
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "can't iterate sessions")
	}
	return records, nil
}

// Get returns single session
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID) (SessionRecord, error) {
	row := s.QueryRowContext(ctx, selectSessions+` WHERE session_id = ?`, sessionID.String())
	record, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, errors.Wrapf(ErrNotFound, "session %s", sessionID)
	}
	return record, err
}

const selectSessions = `
	SELECT session_id, source, created_at, robust_count, unique_ids, frames_processed,
		max_count, mean_count, detector_failures, proof_image, reference_count, decision
	FROM sessions`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (SessionRecord, error) {
	var (
		record    SessionRecord
		rawID     string
		createdAt int64
		proof     sql.NullString
		reference sql.NullInt64
		decision  sql.NullString
	)
	err := row.Scan(
		&rawID,
		&record.Source,
		&createdAt,
		&record.RobustCount,
		&record.UniqueIDs,
		&record.FramesProcessed,
		&record.MaxCount,
		&record.MeanCount,
		&record.DetectorFailures,
		&proof,
		&reference,
		&decision,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, err
		}
		return SessionRecord{}, errors.Wrap(err, "can't scan session")
	}
	record.SessionID, err = uuid.Parse(rawID)
	if err != nil {
		return SessionRecord{}, errors.Wrapf(err, "bad session id %q", rawID)
	}
	record.CreatedAt = time.Unix(0, createdAt)
	record.ProofImage = proof.String
	record.Decision = decision.String
	if reference.Valid {
		v := int(reference.Int64)
		record.ReferenceCount = &v
	}
	return record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
