package main

import (
	"context"
	"sync"
	"testing"

	"outbound-caller/internal/telephony"

	"github.com/livekit/protocol/livekit"
)

type closeCounter struct {
	mu     sync.Mutex
	closes int
}

func (c *closeCounter) CreateDispatch(ctx context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error) {
	return &livekit.AgentDispatch{}, nil
}

func (c *closeCounter) CreateSIPParticipant(ctx context.Context, req *livekit.CreateSIPParticipantRequest) (*livekit.SIPParticipantInfo, error) {
	return &livekit.SIPParticipantInfo{}, nil
}

func (c *closeCounter) ListParticipants(ctx context.Context, req *livekit.ListParticipantsRequest) (*livekit.ListParticipantsResponse, error) {
	return &livekit.ListParticipantsResponse{}, nil
}

func (c *closeCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func TestRun_ClosesPlatformWhenLaterSetupFails(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("SIP_TRUNK_ID", "ST_trunk")
	t.Setenv("KRISP_ENABLED", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("MAX_CONCURRENT_CALLS", "")
	// Nothing listens on port 1; the pool ping fails after the manager exists.
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "app")
	t.Setenv("DB_SSLMODE", "disable")

	cc := &closeCounter{}
	connects := 0
	err := run(context.Background(), func(cfg telephony.Config) (telephony.Provider, error) {
		connects++
		return cc, nil
	})
	if err == nil {
		t.Fatalf("expected postgres setup to fail")
	}
	if connects != 1 {
		t.Fatalf("expected the platform to be connected once, got %d", connects)
	}
	if cc.closes != 1 {
		t.Fatalf("expected platform closed on setup failure, got %d closes", cc.closes)
	}
}

func TestRun_ConfigurationErrorBeforeConnect(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("SIP_TRUNK_ID", "")
	t.Setenv("KRISP_ENABLED", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("MAX_CONCURRENT_CALLS", "")

	connects := 0
	err := run(context.Background(), func(cfg telephony.Config) (telephony.Provider, error) {
		connects++
		return &closeCounter{}, nil
	})
	if err == nil {
		t.Fatalf("expected missing trunk to fail")
	}
	if connects != 0 {
		t.Fatalf("expected no connection, got %d", connects)
	}
}
