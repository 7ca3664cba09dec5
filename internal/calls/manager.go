package calls

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"outbound-caller/internal/config"
	"outbound-caller/internal/metrics"
	"outbound-caller/internal/telephony"
	"outbound-caller/pkg/logger"

	"github.com/google/uuid"
	"github.com/livekit/protocol/livekit"
)

const (
	envTrunkID      = "SIP_TRUNK_ID"
	envKrispEnabled = "KRISP_ENABLED"

	roomPrefix         = "outbound-"
	defaultDisplayName = "Caller"
)

// PhonePattern is the accepted E.164 shape: '+' then 7 to 15 digits.
var PhonePattern = regexp.MustCompile(`^\+\d{7,15}$`)

// Options overrides settings otherwise resolved from the environment.
type Options struct {
	// TrunkID falls back to SIP_TRUNK_ID. Required.
	TrunkID string
	// KrispEnabled falls back to KRISP_ENABLED, then true.
	KrispEnabled *bool
	// Platform fields fall back to LIVEKIT_URL, LIVEKIT_API_KEY, LIVEKIT_API_SECRET.
	Platform telephony.Config

	// AgentJoinTimeout > 0 waits for the agent to show up in the room before dialing.
	AgentJoinTimeout time.Duration
	Retry            RetryPolicy
	Metrics          *metrics.Calls
}

// CallRequest is one outbound call placement.
type CallRequest struct {
	PhoneNumber string
	CallerName  string
	AgentName   string
	// AgentMetadata is a JSON object forwarded to the agent as-is. Empty is
	// sent as null.
	AgentMetadata json.RawMessage
}

// CallResult is returned once the callee has answered.
type CallResult struct {
	Participant *livekit.SIPParticipantInfo
	RoomName    string
}

// Manager places outbound calls: new room, agent dispatch, then SIP dial.
//
// Configuration is fixed after construction and the platform connection is
// shared, so a Manager is safe for concurrent PlaceCall calls.
type Manager struct {
	trunkID          string
	krispEnabled     bool
	agentJoinTimeout time.Duration
	retry            RetryPolicy
	metrics          *metrics.Calls

	shared   *telephony.Shared
	provider telephony.Provider

	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	newRoomName func() string
}

// NewManager resolves configuration and acquires the shared platform
// connection. Every Manager built from the same holder uses one connection.
func NewManager(shared *telephony.Shared, opts Options) (*Manager, error) {
	trunkID := strings.TrimSpace(opts.TrunkID)
	if trunkID == "" {
		trunkID = strings.TrimSpace(os.Getenv(envTrunkID))
	}
	if trunkID == "" {
		return nil, &ConfigurationError{Key: envTrunkID}
	}

	krisp := true
	if opts.KrispEnabled != nil {
		krisp = *opts.KrispEnabled
	} else {
		v, err := config.LookupBool(envKrispEnabled)
		if err != nil {
			return nil, &ConfigurationError{Key: envKrispEnabled, Err: err}
		}
		if v != nil {
			krisp = *v
		}
	}

	if shared == nil {
		return nil, &ConfigurationError{Key: "platform connection", Err: errors.New("shared holder is nil")}
	}
	provider, err := shared.Acquire(opts.Platform.WithEnvDefaults())
	if err != nil {
		return nil, &ConfigurationError{Key: "platform connection", Err: err}
	}

	return &Manager{
		trunkID:          trunkID,
		krispEnabled:     krisp,
		agentJoinTimeout: opts.AgentJoinTimeout,
		retry:            opts.Retry.withDefaults(),
		metrics:          opts.Metrics,
		shared:           shared,
		provider:         provider,
		now:              time.Now,
		sleep:            sleepContext,
		newRoomName:      NewRoomName,
	}, nil
}

func (m *Manager) TrunkID() string { return m.trunkID }

func (m *Manager) KrispEnabled() bool { return m.krispEnabled }

// Provider returns the shared platform connection in use.
func (m *Manager) Provider() telephony.Provider { return m.provider }

// NewRoomName returns "outbound-" followed by 32 lowercase hex characters.
func NewRoomName() string {
	id := uuid.New()
	return roomPrefix + hex.EncodeToString(id[:])
}

// ValidatePhone checks number against PhonePattern.
func ValidatePhone(number string) error {
	if !PhonePattern.MatchString(number) {
		return &ValidationError{Field: "phone_number", Value: number}
	}
	return nil
}

// PlaceCall dispatches the agent into a fresh room and dials the callee into
// it, blocking until the callee answers.
//
// Errors: *ValidationError (nothing was sent), *DispatchError (not retried),
// *DialError (retries exhausted). If the dial fails after a successful
// dispatch the room and agent are left behind.
func (m *Manager) PlaceCall(ctx context.Context, req CallRequest) (res CallResult, err error) {
	start := m.now()
	defer func() {
		m.metrics.ObserveCall(outcomeOf(err), m.now().Sub(start))
	}()

	if err := ValidatePhone(req.PhoneNumber); err != nil {
		return CallResult{}, err
	}

	roomName := m.newRoomName()
	log := logger.From(ctx).With("room", roomName, "agent", req.AgentName)

	metadata, err := encodeMetadata(req.AgentMetadata)
	if err != nil {
		return CallResult{}, err
	}

	log.Info("dispatching agent")
	if _, err := m.provider.CreateDispatch(ctx, &livekit.CreateAgentDispatchRequest{
		AgentName: req.AgentName,
		Room:      roomName,
		Metadata:  metadata,
	}); err != nil {
		return CallResult{}, &DispatchError{RoomName: roomName, AgentName: req.AgentName, Err: err}
	}

	if m.agentJoinTimeout > 0 {
		if err := m.WaitForAgent(ctx, roomName, req.AgentName, m.agentJoinTimeout); err != nil {
			log.Warn("agent readiness check failed", "err", err)
		}
	}

	timestamp := m.now().Unix()
	displayName := req.CallerName
	if displayName == "" {
		displayName = defaultDisplayName
	}
	participant, err := m.dial(ctx, &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          m.trunkID,
		SipCallTo:           req.PhoneNumber,
		RoomName:            roomName,
		ParticipantIdentity: fmt.Sprintf("%s-caller-%d", req.CallerName, timestamp),
		ParticipantName:     displayName,
		KrispEnabled:        m.krispEnabled,
		WaitUntilAnswered:   true,
	})
	if err != nil {
		return CallResult{}, err
	}

	log.Info("outbound call connected", "participant_sid", participant.GetParticipantId())
	return CallResult{Participant: participant, RoomName: roomName}, nil
}

// dial issues the SIP participant request under the retry policy.
func (m *Manager) dial(ctx context.Context, req *livekit.CreateSIPParticipantRequest) (*livekit.SIPParticipantInfo, error) {
	log := logger.From(ctx).With("room", req.RoomName)

	var lastErr error
	attempt := 0
	for attempt < m.retry.MaxAttempts {
		attempt++
		info, err := m.provider.CreateSIPParticipant(ctx, req)
		m.metrics.ObserveDialAttempt(err)
		if err == nil {
			return info, nil
		}
		lastErr = err

		if attempt == m.retry.MaxAttempts {
			break
		}
		delay := m.retry.Delay(attempt)
		log.Warn("sip dial failed, retrying", "attempt", attempt, "delay", delay.String(), "err", err)
		if serr := m.sleep(ctx, delay); serr != nil {
			lastErr = errors.Join(lastErr, serr)
			break
		}
	}
	return nil, &DialError{RoomName: req.RoomName, Attempts: attempt, Err: lastErr}
}

// encodeMetadata compacts raw without re-decoding it, so numbers keep their
// exact digits.
func encodeMetadata(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "null", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("calls: encode agent metadata: %w", err)
	}
	return buf.String(), nil
}

// Close releases the shared platform connection. Drain in-flight calls first.
func (m *Manager) Close() error {
	return m.shared.Close()
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeConnected
	}
	var (
		ve *ValidationError
		de *DispatchError
		dl *DialError
	)
	switch {
	case errors.As(err, &ve):
		return metrics.OutcomeValidationFailed
	case errors.As(err, &de):
		return metrics.OutcomeDispatchFailed
	case errors.As(err, &dl):
		return metrics.OutcomeDialFailed
	default:
		return metrics.OutcomeError
	}
}
