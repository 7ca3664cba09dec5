package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"
)

// steppingClock advances by step on every read.
type steppingClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppingClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestWaitForAgent_ReturnsWhenAgentPresent(t *testing.T) {
	fp := &fakePlatform{participants: []*livekit.ParticipantInfo{{Identity: "caller"}, {Identity: "survey"}}}
	m, sleeps := newTestManager(t, fp)

	if err := m.WaitForAgent(context.Background(), "outbound-x", "survey", time.Second); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if fp.lists != 1 || len(sleeps.delays) != 0 {
		t.Fatalf("expected a single poll, got %d lists", fp.lists)
	}
}

func TestWaitForAgent_TimesOutWithoutError(t *testing.T) {
	fp := &fakePlatform{}
	m, sleeps := newTestManager(t, fp)
	clock := &steppingClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	m.now = clock.now

	if err := m.WaitForAgent(context.Background(), "outbound-x", "survey", time.Second); err != nil {
		t.Fatalf("expected timeout to be swallowed, got %v", err)
	}
	if fp.lists == 0 {
		t.Fatalf("expected polling")
	}
	for _, d := range sleeps.delays {
		if d != 100*time.Millisecond {
			t.Fatalf("unexpected poll interval %v", d)
		}
	}
}

type failingLister struct {
	fakePlatform
}

func (f *failingLister) ListParticipants(ctx context.Context, req *livekit.ListParticipantsRequest) (*livekit.ListParticipantsResponse, error) {
	return nil, errors.New("room service down")
}

func TestPlaceCall_ReadinessCheckFailureStillDials(t *testing.T) {
	fp := &failingLister{}
	m, _ := newTestManager(t, &fp.fakePlatform)
	m.provider = fp
	m.agentJoinTimeout = time.Second

	if _, err := m.PlaceCall(context.Background(), CallRequest{PhoneNumber: "+15551234567", AgentName: "a"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(fp.dials) != 1 {
		t.Fatalf("expected dial after failed readiness check")
	}
}
