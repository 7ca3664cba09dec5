package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo stores records in the outbound_calls table
// (see migrations/001_outbound_calls.sql). db is expected to use the pgx
// stdlib driver.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Save(ctx context.Context, rec Record) error {
	if r.db == nil {
		return errors.New("calls: postgres db is nil")
	}
	if rec.RoomName == "" {
		return errors.New("calls: room_name required")
	}
	const q = `
INSERT INTO outbound_calls (room_name, phone_number, caller_name, agent_name, participant_sid, status, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (room_name) DO UPDATE SET
	participant_sid = EXCLUDED.participant_sid,
	status          = EXCLUDED.status,
	error           = EXCLUDED.error,
	updated_at      = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.RoomName,
		rec.PhoneNumber,
		rec.CallerName,
		rec.AgentName,
		rec.ParticipantSID,
		string(rec.Status),
		rec.Error,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, roomName string) (Record, error) {
	if r.db == nil {
		return Record{}, errors.New("calls: postgres db is nil")
	}
	const q = `
SELECT room_name, phone_number, caller_name, agent_name, participant_sid, status, error, created_at, updated_at
FROM outbound_calls
WHERE room_name = $1
`
	var rec Record
	if err := r.db.QueryRowContext(ctx, q, roomName).Scan(
		&rec.RoomName,
		&rec.PhoneNumber,
		&rec.CallerName,
		&rec.AgentName,
		&rec.ParticipantSID,
		&rec.Status,
		&rec.Error,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}
