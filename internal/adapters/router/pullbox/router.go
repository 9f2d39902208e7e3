package pullbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/bnema/odfops/internal/adapters/router/hostsync"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

var (
	_ ports.OperationRouter = (*Router)(nil)
	_ ports.UnsyncedTaker   = (*Router)(nil)
)

type Config struct {
	PollInterval time.Duration
	// MaxRetries bounds the retries of one sync attempt. Zero disables them.
	MaxRetries uint64
	// MaxFailedSyncs failed attempts in a row mark the host unreachable.
	MaxFailedSyncs int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   500 * time.Millisecond,
		MaxRetries:     3,
		MaxFailedSyncs: 5,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.MaxFailedSyncs <= 0 {
		c.MaxFailedSyncs = defaults.MaxFailedSyncs
	}
	return c
}

// Router syncs a member with the session host by polling.
type Router struct {
	*hostsync.Core

	syncer     ports.OpSyncer
	cfg        Config
	newBackOff func() backoff.BackOff

	failedSyncs int
	startOnce   sync.Once
	started     chan struct{}
	wake        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

type options struct {
	cfg        Config
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
	seqHead    int64
}

type Option func(*options)

func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg.withDefaults()
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *options) {
		if newBackOff != nil {
			o.newBackOff = newBackOff
		}
	}
}

func WithSeqHead(seq int64) Option {
	return func(o *options) {
		o.seqHead = seq
	}
}

func New(syncer ports.OpSyncer, sessionID domain.SessionID, memberID domain.MemberID, opts ...Option) *Router {
	o := options{
		cfg:        DefaultConfig(),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		Core:       hostsync.NewCore(sessionID, memberID, o.seqHead, o.logger),
		syncer:     syncer,
		cfg:        o.cfg,
		newBackOff: o.newBackOff,
		started:    make(chan struct{}),
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (r *Router) SetPlaybackFunction(fn ports.PlaybackFunc) {
	if !r.InstallPlayback(fn) {
		return
	}

	r.startOnce.Do(func() {
		close(r.started)
		r.SetState(ports.RouterConnecting, nil)
		go r.loop()
	})
}

func (r *Router) Push(operations []ops.Operation) error {
	if err := r.Enqueue(operations); err != nil {
		return err
	}

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

func (r *Router) Close(ctx context.Context) error {
	first, failed := r.BeginClose()
	if !first {
		return nil
	}

	r.cancel()
	select {
	case <-r.started:
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
	}

	var err error
	if !failed {
		err = r.flush(ctx)
	}
	r.SetState(ports.RouterClosed, nil)
	if err != nil {
		return fmt.Errorf("flush unsynced operations: %w", err)
	}

	return nil
}

func (r *Router) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if !r.syncOnce(r.ctx) {
			return
		}

		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
		case <-ticker.C:
		}
	}
}

func (r *Router) syncOnce(ctx context.Context) bool {
	req, pending, err := r.request()
	if err != nil {
		r.Fail(err)
		return false
	}

	resp, err := r.call(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		return r.recordFailure(err)
	}

	r.failedSyncs = 0
	r.SetHostConnection(true)
	r.SetState(ports.RouterActive, nil)

	if resp.Result == domain.SyncError {
		r.Fail(fmt.Errorf("session host rejected sync: %w", resp.Error.Err()))
		return false
	}
	if resp.Result == domain.SyncAdded {
		r.Acknowledge(pending)
	}

	if err := r.Apply(resp.Ops); err != nil {
		r.Fail(err)
		return false
	}

	return true
}

func (r *Router) request() (domain.SyncRequest, int, error) {
	req := domain.SyncRequest{
		SessionID: r.SessionID,
		MemberID:  r.MemberID,
		SeqHead:   r.SeqHead(),
	}

	batch, err := r.Pending(0)
	if err != nil {
		return domain.SyncRequest{}, 0, err
	}
	if len(batch.Ops) > 0 {
		req.BaseSeq = batch.BaseSeq
		req.FirstClientSeq = batch.FirstClientSeq
		req.Ops = batch.Ops
	}

	return req, len(batch.Ops), nil
}

func (r *Router) call(ctx context.Context, req domain.SyncRequest) (domain.SyncResponse, error) {
	var resp domain.SyncResponse
	attempt := func() error {
		var err error
		resp, err = r.syncer.Sync(ctx, req)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := hostsync.RetryPolicy(ctx, r.newBackOff(), r.cfg.MaxRetries)
	err := backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		r.Logger.Debug("sync failed, retrying", "session", r.SessionID, "error", err, "wait", wait)
	})

	return resp, err
}

func (r *Router) recordFailure(err error) bool {
	if IsPermanent(err) {
		r.Fail(err)
		return false
	}

	r.failedSyncs++
	r.SetHostConnection(false)
	if r.failedSyncs >= r.cfg.MaxFailedSyncs {
		r.Fail(fmt.Errorf("%w after %d attempts: %v", domain.ErrHostUnreachable, r.failedSyncs, err))
		return false
	}

	r.Logger.Warn("sync with session host failed", "session", r.SessionID, "attempt", r.failedSyncs, "error", err)
	r.Warn(err)
	return true
}

func (r *Router) flush(ctx context.Context) error {
	for {
		req, pending, err := r.request()
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}

		resp, err := r.call(ctx, req)
		if err != nil {
			return err
		}
		if resp.Result == domain.SyncError {
			return resp.Error.Err()
		}
		r.Acknowledge(pending)
	}
}

func IsPermanent(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrNotSessionMember) ||
		errors.Is(err, domain.ErrMalformedOperation) ||
		errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, context.Canceled)
}
