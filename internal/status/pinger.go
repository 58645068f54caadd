package status

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/hub/model"
	"go.uber.org/zap"
)

// Config holds status pinger configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// AddressLister returns the listings whose game ports should be probed.
type AddressLister interface {
	ListAddresses(ctx context.Context) ([]*model.Server, error)
}

// LivenessUpdater records a listing's online state and last-ping time.
type LivenessUpdater interface {
	UpdateLiveness(ctx context.Context, id uuid.UUID, online bool, at time.Time) error
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Pinger periodically probes every listed server's game port over TCP and
// flips is_online accordingly. A server only goes offline after
// FailThreshold consecutive failed probes, so one dropped packet does not
// delist anyone.
type Pinger struct {
	lister     AddressLister
	updater    LivenessUpdater
	failCounts map[uuid.UUID]int
	mu         sync.Mutex
	cfg        Config
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger

	// dial is swapped out in tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// New creates a Pinger.
func New(lister AddressLister, updater LivenessUpdater, cfg Config, logger *zap.Logger) *Pinger {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Pinger{
		lister:     lister,
		updater:    updater,
		failCounts: make(map[uuid.UUID]int),
		cfg:        cfg,
		logger:     logger,
		dial:       net.DialTimeout,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (p *Pinger) SetMetricsRecord(fn MetricsRecordFunc) {
	p.onMetrics = fn
}

// Start runs the probe loop until done is closed.
func (p *Pinger) Start(done <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CheckInterval-time.Second)
			p.CheckAll(ctx)
			cancel()
		case <-done:
			return
		}
	}
}

// CheckAll probes every listing's game port with bounded concurrency.
func (p *Pinger) CheckAll(ctx context.Context) {
	servers, err := p.lister.ListAddresses(ctx)
	if err != nil {
		p.logger.Error("status: list servers", zap.Error(err))
		return
	}

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, srv := range servers {
		wg.Add(1)
		go func(srv *model.Server) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			success := p.probe(srv.Address())

			if p.onMetrics != nil {
				p.onMetrics(success)
			}

			p.mu.Lock()
			if success {
				p.failCounts[srv.ID] = 0
			} else {
				p.failCounts[srv.ID]++
			}
			count := p.failCounts[srv.ID]
			p.mu.Unlock()

			now := time.Now().UTC()

			switch {
			case success:
				if !srv.IsOnline {
					p.logger.Info("status: server back online",
						zap.String("server_id", srv.ID.String()),
						zap.String("address", srv.Address()),
					)
				}
				if err := p.updater.UpdateLiveness(ctx, srv.ID, true, now); err != nil {
					p.logger.Warn("status: update liveness", zap.Error(err))
				}
			case count == p.cfg.FailThreshold:
				// Cross the threshold exactly once.
				p.logger.Warn("status: server offline",
					zap.String("server_id", srv.ID.String()),
					zap.String("address", srv.Address()),
					zap.Int("fail_count", count),
				)
				if err := p.updater.UpdateLiveness(ctx, srv.ID, false, now); err != nil {
					p.logger.Warn("status: update liveness", zap.Error(err))
				}
			}
		}(srv)
	}

	wg.Wait()
}

// probe reports whether a TCP connection to the game port succeeds.
func (p *Pinger) probe(addr string) bool {
	conn, err := p.dial("tcp", addr, p.cfg.ProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
