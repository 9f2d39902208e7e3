// Package fallback continues a session locally once its host is unreachable.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/events"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

var _ ports.OperationRouter = (*Router)(nil)

var (
	errNilPrimaryRouter  = errors.New("primary operation router is nil")
	errNilFallbackRouter = errors.New("fallback operation router is nil")
)

type Router struct {
	primary  ports.OperationRouter
	fallback ports.OperationRouter
	logger   *slog.Logger

	switchMu sync.Mutex

	mu        sync.Mutex
	switching bool
	switched  bool
	playback  ports.PlaybackFunc
	events    events.Bus[ports.RouterEvent]
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRouter(primary ports.OperationRouter, fallback ports.OperationRouter, opts ...Option) *Router {
	router, err := NewRouterChecked(primary, fallback, opts...)
	if err != nil {
		panic(err)
	}

	return router
}

func NewRouterChecked(primary ports.OperationRouter, fallback ports.OperationRouter, opts ...Option) (*Router, error) {
	if primary == nil {
		return nil, errNilPrimaryRouter
	}
	if fallback == nil {
		return nil, errNilFallbackRouter
	}

	r := &Router{
		primary:  primary,
		fallback: fallback,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	primary.Subscribe(r.onPrimaryEvent)
	fallback.Subscribe(r.onFallbackEvent)

	return r, nil
}

func (r *Router) SetOperationFactory(factory *ops.Factory) {
	r.primary.SetOperationFactory(factory)
	r.fallback.SetOperationFactory(factory)
}

func (r *Router) SetPlaybackFunction(fn ports.PlaybackFunc) {
	r.mu.Lock()
	r.playback = fn
	switched := r.switched
	r.mu.Unlock()

	if switched {
		r.fallback.SetPlaybackFunction(fn)
		return
	}
	r.primary.SetPlaybackFunction(fn)
}

// Push switches to the fallback itself if the primary failed before its
// failure event arrived.
func (r *Router) Push(operations []ops.Operation) error {
	if !r.Switched() {
		err := r.primary.Push(operations)
		if !errors.Is(err, domain.ErrRouterFailed) {
			return err
		}
		if cause := r.primaryErr(); errors.Is(cause, domain.ErrHostUnreachable) {
			r.switchToFallback(cause)
		}
		if !r.Switched() {
			return err
		}
	}

	return r.fallback.Push(operations)
}

func (r *Router) Close(ctx context.Context) error {
	var errs []error
	if err := r.primary.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close primary router: %w", err))
	}
	if err := r.fallback.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close fallback router: %w", err))
	}

	return errors.Join(errs...)
}

func (r *Router) Subscribe(fn func(ports.RouterEvent)) func() {
	return r.events.Subscribe(fn)
}

func (r *Router) HasLocalUnsyncedOps() bool {
	return r.current().HasLocalUnsyncedOps()
}

func (r *Router) HasSessionHostConnection() bool {
	return r.current().HasSessionHostConnection()
}

func (r *Router) State() ports.RouterState {
	return r.current().State()
}

func (r *Router) Switched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.switched
}

func (r *Router) onFallback() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.switching || r.switched
}

func (r *Router) primaryErr() error {
	if failed, ok := r.primary.(interface{ Err() error }); ok {
		return failed.Err()
	}
	return nil
}

func (r *Router) current() ports.OperationRouter {
	if r.Switched() {
		return r.fallback
	}
	return r.primary
}

func (r *Router) onPrimaryEvent(event ports.RouterEvent) {
	if r.onFallback() {
		return
	}

	r.events.Publish(event)
	if event.Kind == ports.RouterEventError && event.State == ports.RouterError && errors.Is(event.Err, domain.ErrHostUnreachable) {
		r.switchToFallback(event.Err)
	}
}

func (r *Router) onFallbackEvent(event ports.RouterEvent) {
	if r.onFallback() {
		r.events.Publish(event)
	}
}

// switchToFallback replays unacknowledged operations on the fallback.
func (r *Router) switchToFallback(cause error) {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	r.mu.Lock()
	if r.switched {
		r.mu.Unlock()
		return
	}
	r.switching = true
	playback := r.playback
	r.mu.Unlock()

	r.logger.Warn("session host lost, continuing locally", "error", cause)

	var pending []ops.Operation
	if taker, ok := r.primary.(ports.UnsyncedTaker); ok {
		pending = taker.TakeUnsynced()
	}

	if playback != nil {
		r.fallback.SetPlaybackFunction(playback)
	}
	if len(pending) > 0 {
		if err := r.fallback.Push(pending); err != nil {
			r.logger.Error("failed to replay unsynced operations locally", "count", len(pending), "error", err)
		}
	}

	r.mu.Lock()
	r.switched = true
	r.mu.Unlock()

	r.events.Publish(ports.RouterEvent{Kind: ports.RouterEventFallback, State: r.fallback.State(), Err: cause})
}
