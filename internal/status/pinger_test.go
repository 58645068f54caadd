package status

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/hub/model"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubLister struct {
	servers []*model.Server
}

func (s *stubLister) ListAddresses(_ context.Context) ([]*model.Server, error) {
	return s.servers, nil
}

type stubUpdater struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	calls  int
}

func newStubUpdater() *stubUpdater {
	return &stubUpdater{online: make(map[uuid.UUID]bool)}
}

func (s *stubUpdater) UpdateLiveness(_ context.Context, id uuid.UUID, online bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[id] = online
	s.calls++
	return nil
}

func (s *stubUpdater) get(id uuid.UUID) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.online[id]
	return v, ok
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestProbe_openPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := New(nil, nil, Config{ProbeTimeout: 2 * time.Second}, zap.NewNop())
	if !p.probe(ln.Addr().String()) {
		t.Error("expected probe of a listening port to succeed")
	}
}

func TestProbe_closedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := New(nil, nil, Config{ProbeTimeout: time.Second}, zap.NewNop())
	if p.probe(addr) {
		t.Error("expected probe of a closed port to fail")
	}
}

func TestCheckAll_offlineAfterThreshold(t *testing.T) {
	id := uuid.New()
	lister := &stubLister{servers: []*model.Server{
		{ID: id, IPAddress: "203.0.113.1", Port: 7171, IsOnline: true},
	}}
	updater := newStubUpdater()

	p := New(lister, updater, Config{FailThreshold: 3}, zap.NewNop())
	p.dial = func(_, _ string, _ time.Duration) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial"}
	}

	p.CheckAll(context.Background())
	p.CheckAll(context.Background())
	if _, ok := updater.get(id); ok {
		t.Fatal("must not flip offline before the threshold")
	}

	p.CheckAll(context.Background())
	online, ok := updater.get(id)
	if !ok || online {
		t.Errorf("expected offline at the threshold, got online=%v recorded=%v", online, ok)
	}
}

func TestStart_stopsWhenDoneClosed(t *testing.T) {
	p := New(&stubLister{}, newStubUpdater(), Config{
		CheckInterval: 50 * time.Millisecond,
		ProbeTimeout:  10 * time.Millisecond,
		FailThreshold: 3,
	}, zap.NewNop())

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		p.Start(done)
		close(stopped)
	}()

	// Closing done must stop the loop even with other receivers of the same
	// channel, which is how the composition root broadcasts shutdown.
	go func() { <-done }()
	close(done)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after done was closed")
	}
}

func TestCheckAll_recoversImmediately(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	host, port, _ := net.SplitHostPort(ln.Addr().String())

	id := uuid.New()
	portNum, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	lister := &stubLister{servers: []*model.Server{
		{ID: id, IPAddress: host, Port: portNum, IsOnline: false},
	}}
	updater := newStubUpdater()

	p := New(lister, updater, Config{ProbeTimeout: 2 * time.Second, FailThreshold: 3}, zap.NewNop())
	p.CheckAll(context.Background())

	online, ok := updater.get(id)
	if !ok || !online {
		t.Errorf("expected online after a single good probe, got online=%v recorded=%v", online, ok)
	}
}
