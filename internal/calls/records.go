package calls

import (
	"context"
	"errors"
	"time"
)

// Record is the persisted trace of one call placement that reached the platform.
//
// Rooms left behind by a failed dial stay visible here as dial_failed; nothing
// cleans them up.
type Record struct {
	RoomName       string `json:"room_name" db:"room_name"`
	PhoneNumber    string `json:"phone_number" db:"phone_number"`
	CallerName     string `json:"caller_name" db:"caller_name"`
	AgentName      string `json:"agent_name" db:"agent_name"`
	ParticipantSID string `json:"participant_sid,omitempty" db:"participant_sid"`

	Status Status `json:"status" db:"status"`
	// Error is the internal failure text. Never returned to API callers.
	Error string `json:"-" db:"error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusConnected      Status = "connected"
	StatusDispatchFailed Status = "dispatch_failed"
	StatusDialFailed     Status = "dial_failed"
)

var ErrNotFound = errors.New("calls: record not found")

// Repository stores call records keyed by room name.
type Repository interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, roomName string) (Record, error)
}

// NewRecord builds the record for a PlaceCall outcome. It reports false when
// the outcome never reached the platform (validation, encoding) and there is
// no room to record.
func NewRecord(req CallRequest, res CallResult, err error, now time.Time) (Record, bool) {
	r := Record{
		PhoneNumber: req.PhoneNumber,
		CallerName:  req.CallerName,
		AgentName:   req.AgentName,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	var (
		de *DispatchError
		dl *DialError
	)
	switch {
	case err == nil:
		r.RoomName = res.RoomName
		r.ParticipantSID = res.Participant.GetParticipantId()
		r.Status = StatusConnected
	case errors.As(err, &de):
		r.RoomName = de.RoomName
		r.Status = StatusDispatchFailed
		if de.Err != nil {
			r.Error = de.Err.Error()
		}
	case errors.As(err, &dl):
		r.RoomName = dl.RoomName
		r.Status = StatusDialFailed
		if dl.Err != nil {
			r.Error = dl.Err.Error()
		}
	default:
		return Record{}, false
	}
	return r, r.RoomName != ""
}
