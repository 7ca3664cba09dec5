package calls

import (
	"context"
	"time"

	"outbound-caller/pkg/logger"

	"github.com/livekit/protocol/livekit"
)

const agentPollInterval = 100 * time.Millisecond

// DefaultAgentJoinTimeout is used by WaitForAgent when timeout <= 0.
const DefaultAgentJoinTimeout = 3 * time.Second

// WaitForAgent polls the room until a participant with the agent's identity
// appears. A timeout only logs a warning; listing errors are returned.
func (m *Manager) WaitForAgent(ctx context.Context, roomName, agentName string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultAgentJoinTimeout
	}
	deadline := m.now().Add(timeout)

	for m.now().Before(deadline) {
		resp, err := m.provider.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: roomName})
		if err != nil {
			return err
		}
		for _, p := range resp.GetParticipants() {
			if p.GetIdentity() == agentName {
				return nil
			}
		}
		if err := m.sleep(ctx, agentPollInterval); err != nil {
			return err
		}
	}

	logger.From(ctx).Warn("agent not detected in room",
		"agent", agentName,
		"room", roomName,
		"timeout", timeout.String(),
	)
	return nil
}
