package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
	"estateproof/pkg/platform/sentinel"
	txcontext "estateproof/pkg/platform/tx"
)

// PostgresStore persists records as JSONB payloads with denormalized
// status, priority, and flag columns for querying. Writes join any
// transaction carried in the context, so a decision commits atomically
// with its audit outbox row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, record *models.VerificationRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.runner(ctx).ExecContext(ctx, `
		INSERT INTO verifications (property_id, status, priority, risk_flags, payload, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.PropertyID.String(),
		string(record.Status),
		priorityColumn(record),
		pq.Array(flagsColumn(record)),
		payload,
		record.SubmittedAt,
		record.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, propertyID id.PropertyID) (*models.VerificationRecord, error) {
	var payload []byte
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT payload FROM verifications WHERE property_id = $1`,
		propertyID.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select verification: %w", err)
	}
	return unmarshalRecord(payload)
}

func (s *PostgresStore) Update(ctx context.Context, record *models.VerificationRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	result, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE verifications
		SET status = $2, priority = $3, risk_flags = $4, payload = $5, updated_at = $6
		WHERE property_id = $1`,
		record.PropertyID.String(),
		string(record.Status),
		priorityColumn(record),
		pq.Array(flagsColumn(record)),
		payload,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, propertyID id.PropertyID) error {
	result, err := s.runner(ctx).ExecContext(ctx,
		`DELETE FROM verifications WHERE property_id = $1`,
		propertyID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.VerificationRecord, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT payload FROM verifications ORDER BY submitted_at, property_id`)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.VerificationRecord, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT payload FROM verifications WHERE status = $1 ORDER BY submitted_at, property_id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list verifications by status: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*models.VerificationRecord, error) {
	records := make([]*models.VerificationRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		record, err := unmarshalRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return records, nil
}

func unmarshalRecord(payload []byte) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

func priorityColumn(record *models.VerificationRecord) string {
	if record.ReviewerQueue == nil {
		return ""
	}
	return string(record.ReviewerQueue.Priority)
}

func flagsColumn(record *models.VerificationRecord) []string {
	if record.OracleResult == nil {
		return []string{}
	}
	return record.OracleResult.RiskFlags
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
