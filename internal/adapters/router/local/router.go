package local

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

var errNoPlayback = errors.New("playback function not set")

// Router orders operations for a single participant.
type Router struct {
	mu       sync.Mutex
	factory  *ops.Factory
	playback ports.PlaybackFunc
	clock    ports.Clock
	logger   *slog.Logger
	state    ports.RouterState
	groups   int
	queue    []ops.Operation
	draining bool
	events   events.Bus[ports.RouterEvent]
}

type Option func(*Router)

func WithClock(clock ports.Clock) Option {
	return func(r *Router) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(opts ...Option) *Router {
	r := &Router{
		factory: ops.NewFactory(),
		clock:   ports.SystemClock{},
		logger:  slog.New(slog.DiscardHandler),
		state:   ports.RouterIdle,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Router) SetOperationFactory(factory *ops.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if factory != nil {
		r.factory = factory
	}
}

func (r *Router) SetPlaybackFunction(fn ports.PlaybackFunc) {
	r.mu.Lock()
	r.playback = fn
	changed := r.state == ports.RouterIdle && fn != nil
	if changed {
		r.state = ports.RouterActive
	}
	r.mu.Unlock()

	if changed {
		r.events.Publish(ports.RouterEvent{Kind: ports.RouterEventStateChanged, State: ports.RouterActive})
	}
}

// Push plays the batch back synchronously. Pushes made during playback run
// before the outer Push returns.
func (r *Router) Push(operations []ops.Operation) error {
	r.mu.Lock()
	if r.state == ports.RouterClosed {
		r.mu.Unlock()
		return domain.ErrRouterClosed
	}
	if r.playback == nil {
		r.mu.Unlock()
		return errNoPlayback
	}

	now := r.clock.Now().UnixMilli()
	group := fmt.Sprintf("g%d", r.groups)
	r.groups++

	batch := make([]ops.Operation, 0, len(operations))
	for _, op := range operations {
		restamped, err := r.factory.Restamp(op, now, group)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("restamp %s operation: %w", op.Type(), err)
		}
		batch = append(batch, restamped)
	}

	r.queue = append(r.queue, batch...)
	if r.draining {
		r.mu.Unlock()
		return nil
	}
	r.draining = true
	r.mu.Unlock()

	r.drain()
	return nil
}

func (r *Router) drain() {
	r.events.Publish(ports.RouterEvent{Kind: ports.RouterEventBatchStart})
	defer r.events.Publish(ports.RouterEvent{Kind: ports.RouterEventBatchEnd})

	for {
		r.mu.Lock()
		if len(r.queue) == 0 || r.state == ports.RouterClosed {
			r.queue = nil
			r.draining = false
			r.mu.Unlock()
			return
		}
		op := r.queue[0]
		r.queue = r.queue[1:]
		playback := r.playback
		r.mu.Unlock()

		if !playback(op) {
			r.logger.Debug("operation rejected by guard", "optype", op.Type(), "memberid", op.MemberID())
		}
	}
}

func (r *Router) Close(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.state == ports.RouterClosed {
		r.mu.Unlock()
		return nil
	}
	r.state = ports.RouterClosed
	r.mu.Unlock()

	r.events.Publish(ports.RouterEvent{Kind: ports.RouterEventStateChanged, State: ports.RouterClosed})
	return nil
}

func (r *Router) Subscribe(fn func(ports.RouterEvent)) func() {
	return r.events.Subscribe(fn)
}

func (r *Router) HasLocalUnsyncedOps() bool {
	return false
}

// HasSessionHostConnection is always true: the local router is its own host.
func (r *Router) HasSessionHostConnection() bool {
	return true
}

func (r *Router) State() ports.RouterState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}
