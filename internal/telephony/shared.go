package telephony

import (
	"sync"
)

// Connector builds a Provider from connection parameters.
type Connector func(cfg Config) (Provider, error)

// ConnectLiveKit is the default Connector.
func ConnectLiveKit(cfg Config) (Provider, error) {
	return NewLiveKitProvider(cfg)
}

// Shared owns the process-wide platform connection.
//
// It is constructed once by the composition root and handed to every call
// manager. The first Acquire connects; later calls return the same Provider
// regardless of the parameters they pass. Tests inject a Connector returning
// a fake instead of touching package state.
type Shared struct {
	mu       sync.Mutex
	connect  Connector
	provider Provider
}

func NewShared(connect Connector) *Shared {
	if connect == nil {
		connect = ConnectLiveKit
	}
	return &Shared{connect: connect}
}

// NewSharedWith returns a holder that already owns p.
func NewSharedWith(p Provider) *Shared {
	return &Shared{connect: ConnectLiveKit, provider: p}
}

// Acquire returns the live Provider, connecting with cfg on first use.
func (s *Shared) Acquire(cfg Config) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil {
		return s.provider, nil
	}
	p, err := s.connect(cfg)
	if err != nil {
		return nil, err
	}
	s.provider = p
	return p, nil
}

// Close releases the shared Provider. Closing an empty holder is a no-op.
// Callers must drain in-flight calls first.
func (s *Shared) Close() error {
	s.mu.Lock()
	p := s.provider
	s.provider = nil
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Close()
}
