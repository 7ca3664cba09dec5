package telephony

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/livekit/protocol/livekit"
)

// Provider is the media platform API used by the call orchestrator.
//
// Rules:
// - No platform SDK calls outside telephony adapters.
// - Implementations must be safe for concurrent use; one Provider is shared by
//   every in-flight call in the process.
// - Request/response types are the platform's protocol types; the orchestrator
//   never sees SDK clients directly.
type Provider interface {
	// CreateDispatch asks the platform to send a named agent into a room.
	// The room is created implicitly if it does not exist yet.
	CreateDispatch(ctx context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error)

	// CreateSIPParticipant dials a number over a SIP trunk and joins the callee
	// to the room. With WaitUntilAnswered set it blocks until the callee answers
	// or the platform gives up.
	CreateSIPParticipant(ctx context.Context, req *livekit.CreateSIPParticipantRequest) (*livekit.SIPParticipantInfo, error)

	// ListParticipants lists the participants currently in a room.
	ListParticipants(ctx context.Context, req *livekit.ListParticipantsRequest) (*livekit.ListParticipantsResponse, error)

	// Close releases the connection. The Provider must not be used afterwards.
	Close() error
}

// Config holds the platform connection parameters.
// APISecret must not be logged.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
}

const (
	envURL       = "LIVEKIT_URL"
	envAPIKey    = "LIVEKIT_API_KEY"
	envAPISecret = "LIVEKIT_API_SECRET"
)

var ErrClosed = errors.New("telephony: provider closed")

// WithEnvDefaults fills empty fields from LIVEKIT_URL, LIVEKIT_API_KEY and
// LIVEKIT_API_SECRET.
func (c Config) WithEnvDefaults() Config {
	out := c
	if strings.TrimSpace(out.URL) == "" {
		out.URL = strings.TrimSpace(os.Getenv(envURL))
	}
	if strings.TrimSpace(out.APIKey) == "" {
		out.APIKey = strings.TrimSpace(os.Getenv(envAPIKey))
	}
	if out.APISecret == "" {
		out.APISecret = os.Getenv(envAPISecret)
	}
	return out
}

func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.URL) == "" {
		missing = append(missing, envURL)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, envAPIKey)
	}
	if c.APISecret == "" {
		missing = append(missing, envAPISecret)
	}
	if len(missing) > 0 {
		return errors.New("telephony: missing " + strings.Join(missing, ", "))
	}
	return nil
}
