package auditlog

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bdpipeline/internal/config"
	"bdpipeline/internal/metrics"
	"bdpipeline/internal/models"
)

const defaultQueueSize = 256

// Forwarder copies opportunity activity to the audit-log service in the
// background. Forward only enqueues; a full queue drops the record. Delivery
// failures are logged and counted, never returned.
type Forwarder struct {
	Client  *Client
	Logger  *zap.Logger
	Metrics *metrics.Registry

	// Enabled is consulted before each delivery; nil means always on.
	Enabled func(ctx context.Context) bool

	queue chan models.ActivityLog
	done  chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewForwarder returns nil when no audit service is configured.
func NewForwarder(cfg config.AuditConfig, logger *zap.Logger, reg *metrics.Registry) *Forwarder {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	key := strings.TrimSpace(cfg.APIKey)
	if base == "" || key == "" {
		return nil
	}
	source := strings.TrimSpace(cfg.Agent)
	if source == "" {
		source = "bdpipeline"
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Forwarder{
		Client: &Client{
			Endpoint:    base + eventsPath,
			APIKey:      key,
			Source:      source,
			Timeout:     cfg.Timeout,
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     cfg.Backoff,
		},
		Logger:  logger,
		Metrics: reg,
		queue:   make(chan models.ActivityLog, size),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery goroutine. It is a no-op after the first call.
func (f *Forwarder) Start() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.closed {
		return
	}
	f.started = true
	go f.run()
}

// Close stops accepting records and waits until the queue is drained or ctx
// ends.
func (f *Forwarder) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	started := f.started
	f.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Forwarder) Forward(_ context.Context, item models.ActivityLog) {
	if f == nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- item:
	default:
		f.Metrics.ObserveAuditForward("dropped")
		f.logger().Warn("audit queue full, dropping activity",
			zap.Uint64("activity_id", item.ID),
			zap.Uint64("opportunity_id", item.OpportunityID),
		)
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	ctx := context.Background()
	for item := range f.queue {
		if f.Enabled != nil && !f.Enabled(ctx) {
			continue
		}
		if err := f.Client.Send(ctx, item); err != nil {
			f.Metrics.ObserveAuditForward("failed")
			f.logger().Warn("audit forward failed",
				zap.Uint64("opportunity_id", item.OpportunityID),
				zap.String("kind", string(item.Kind)),
				zap.Error(err),
			)
			continue
		}
		f.Metrics.ObserveAuditForward("sent")
	}
}

func (f *Forwarder) logger() *zap.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return zap.NewNop()
}
