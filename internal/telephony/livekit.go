package telephony

import (
	"context"
	"sync/atomic"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// LiveKitProvider talks to the LiveKit server API over twirp.
// The three service clients share credentials and are safe for concurrent use.
type LiveKitProvider struct {
	dispatch *lksdk.AgentDispatchClient
	sip      *lksdk.SIPClient
	rooms    *lksdk.RoomServiceClient

	closed atomic.Bool
}

// NewLiveKitProvider validates cfg and builds the service clients.
// No network I/O happens until the first call.
func NewLiveKitProvider(cfg Config) (*LiveKitProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LiveKitProvider{
		dispatch: lksdk.NewAgentDispatchServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		sip:      lksdk.NewSIPClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		rooms:    lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
	}, nil
}

func (p *LiveKitProvider) CreateDispatch(ctx context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	return p.dispatch.CreateDispatch(ctx, req)
}

func (p *LiveKitProvider) CreateSIPParticipant(ctx context.Context, req *livekit.CreateSIPParticipantRequest) (*livekit.SIPParticipantInfo, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	return p.sip.CreateSIPParticipant(ctx, req)
}

func (p *LiveKitProvider) ListParticipants(ctx context.Context, req *livekit.ListParticipantsRequest) (*livekit.ListParticipantsResponse, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	return p.rooms.ListParticipants(ctx, req)
}

// Close marks the provider closed. The twirp clients hold no sockets of their
// own beyond the pooled HTTP transport, so there is nothing else to release.
func (p *LiveKitProvider) Close() error {
	p.closed.Store(true)
	return nil
}
