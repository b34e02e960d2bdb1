package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/SteelMorgan/offsetq/internal/config"
	"github.com/SteelMorgan/offsetq/internal/journal"
	"github.com/SteelMorgan/offsetq/internal/queue"
	"github.com/rs/zerolog/log"
)

// DrainService periodically runs one pass over every configured queue and
// copies the records it consumes to an output writer
type DrainService struct {
	queues   []config.QueueConfig
	interval time.Duration
	journal  journal.Store // optional
	out      io.Writer
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDrainService creates a new drain service
func NewDrainService(cfg *config.Config, store journal.Store, out io.Writer) (*DrainService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(cfg.Queues) == 0 {
		return nil, fmt.Errorf("no queues configured (see %s)", cfg.QueuesFile)
	}
	if out == nil {
		return nil, fmt.Errorf("output writer is required")
	}

	return &DrainService{
		queues:   cfg.Queues,
		interval: cfg.PollInterval,
		journal:  store,
		out:      out,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start drains every queue immediately and then on each tick until ctx is
// cancelled or Stop is called
func (s *DrainService) Start(ctx context.Context) error {
	log.Info().
		Int("queues", len(s.queues)).
		Dur("interval", s.interval).
		Msg("Drain service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.DrainAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.DrainAll(ctx)
		}
	}
}

// Stop stops the service loop
func (s *DrainService) Stop() error {
	log.Info().Msg("Drain service stopping")
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// DrainAll runs one pass over each queue. Failures are logged and do not
// stop the other queues.
func (s *DrainService) DrainAll(ctx context.Context) {
	for _, q := range s.queues {
		if ctx.Err() != nil {
			return
		}

		summary, err := s.drain(ctx, q)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("queue", q.Name).Str("path", q.Path).Msg("Queue file not present")
				continue
			}
			log.Warn().Err(err).Str("queue", q.Name).Str("path", q.Path).Msg("Queue pass failed")
		}
		if summary == nil {
			continue
		}

		s.record(ctx, q, summary, err)
	}
}

// drain runs one pass over q. The summary is nil if the pass never opened.
func (s *DrainService) drain(ctx context.Context, q config.QueueConfig) (*queue.Summary, error) {
	limit := q.Limit
	if limit == 0 {
		limit = -1
	}

	p, err := queue.Open(ctx, q.Path,
		queue.WithLimit(limit),
		queue.WithDeleteOnEmpty(q.DeleteOnEmpty),
		queue.WithHeaderWidth(q.HeaderWidth),
	)
	if err != nil {
		return nil, err
	}

	// A record that fails to reach the output is still consumed.
	var writeErr error
	for record := range p.Records() {
		if _, writeErr = io.WriteString(s.out, record); writeErr != nil {
			break
		}
	}

	err = errors.Join(p.Close(), writeErr)
	summary := p.Summary()
	return &summary, err
}

func (s *DrainService) record(ctx context.Context, q config.QueueConfig, summary *queue.Summary, passErr error) {
	if s.journal == nil || !journal.Worth(*summary, passErr) {
		return
	}

	if err := s.journal.Record(ctx, journal.PassFromSummary(q.Name, *summary, passErr)); err != nil {
		log.Warn().Err(err).Str("queue", q.Name).Msg("Failed to journal pass")
	}
}
