// Package live syncs a member with its session host over a websocket.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/bnema/odfops/internal/adapters/router/hostsync"
	"github.com/bnema/odfops/internal/adapters/transport/wire"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

var (
	_ ports.OperationRouter = (*Router)(nil)
	_ ports.UnsyncedTaker   = (*Router)(nil)
)

const writeTimeout = 10 * time.Second

type Router struct {
	*hostsync.Core

	endpoint   string
	header     http.Header
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff
	maxRetries uint64

	startOnce sync.Once
	started   chan struct{}
	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

type options struct {
	token      string
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff
	maxRetries uint64
	logger     *slog.Logger
	seqHead    int64
}

type Option func(*options)

func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(o *options) {
		if dialer != nil {
			o.dialer = dialer
		}
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *options) {
		if newBackOff != nil {
			o.newBackOff = newBackOff
		}
	}
}

func WithMaxRetries(retries uint64) Option {
	return func(o *options) {
		o.maxRetries = retries
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithSeqHead(seq int64) Option {
	return func(o *options) {
		o.seqHead = seq
	}
}

// New takes the live endpoint of a session, e.g. ws://host/sessions/s1/live.
func New(endpoint string, sessionID domain.SessionID, memberID domain.MemberID, opts ...Option) *Router {
	o := options{
		dialer:     websocket.DefaultDialer,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}

	header := http.Header{}
	if o.token != "" {
		header.Set("Authorization", "Bearer "+o.token)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		Core:       hostsync.NewCore(sessionID, memberID, o.seqHead, o.logger),
		endpoint:   endpoint,
		header:     header,
		dialer:     o.dialer,
		newBackOff: o.newBackOff,
		maxRetries: o.maxRetries,
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
		go r.run()
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
	if !failed && r.HasLocalUnsyncedOps() {
		err = r.flush(ctx)
	}
	r.SetState(ports.RouterClosed, nil)
	if err != nil {
		return fmt.Errorf("flush unsynced operations: %w", err)
	}

	return nil
}

func (r *Router) run() {
	defer close(r.done)

	for {
		conn, err := r.dial(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			if !IsPermanent(err) {
				err = fmt.Errorf("%w: %v", domain.ErrHostUnreachable, err)
			}
			r.Fail(err)
			return
		}

		err = r.serve(r.ctx, conn)
		_ = conn.Close()
		if r.ctx.Err() != nil {
			return
		}
		if IsPermanent(err) {
			r.Fail(err)
			return
		}

		r.Logger.Warn("live connection lost", "session", r.SessionID, "error", err)
		r.SetHostConnection(false)
		r.SetState(ports.RouterConnecting, nil)
		r.Warn(err)
	}
}

func (r *Router) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	attempt := func() error {
		c, resp, err := r.dialer.DialContext(ctx, r.endpoint, r.header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return backoff.Permanent(fmt.Errorf("%w: host refused handshake", domain.ErrInvalidToken))
			}
			return err
		}
		conn = c
		return nil
	}

	policy := hostsync.RetryPolicy(ctx, r.newBackOff(), r.maxRetries)
	err := backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		r.Logger.Debug("dial session host failed, retrying", "session", r.SessionID, "error", err, "wait", wait)
	})
	if err != nil {
		return nil, err
	}

	return conn, nil
}

func (r *Router) serve(ctx context.Context, conn *websocket.Conn) error {
	if err := writeFrame(conn, wire.Frame{Type: wire.FrameHello, MemberID: r.MemberID, SeqHead: r.SeqHead()}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	r.SetHostConnection(true)
	r.SetState(ports.RouterActive, nil)

	frames := make(chan wire.Frame)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			var frame wire.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- frame:
			case <-stop:
				return
			}
		}
	}()

	inflight := 0
	upload := func() error {
		for {
			batch, err := r.Pending(inflight)
			if err != nil {
				return err
			}
			if len(batch.Ops) == 0 {
				return nil
			}
			if err := writeFrame(conn, submitFrame(batch)); err != nil {
				return fmt.Errorf("send operations: %w", err)
			}
			inflight += len(batch.Ops)
		}
	}

	if err := upload(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-r.wake:
			if err := upload(); err != nil {
				return err
			}
		case frame := <-frames:
			switch frame.Type {
			case wire.FrameOps:
				if err := r.Apply(frame.Ops); err != nil {
					return err
				}
			case wire.FrameAck:
				inflight -= r.AcknowledgeThrough(frame.Acked)
				if inflight < 0 {
					inflight = 0
				}
			case wire.FrameError:
				return fmt.Errorf("session host rejected operations: %w", frame.Error.Err())
			}
		}
	}
}

func (r *Router) flush(ctx context.Context) error {
	conn, _, err := r.dialer.DialContext(ctx, r.endpoint, r.header)
	if err != nil {
		return fmt.Errorf("dial session host: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	if err := writeFrame(conn, wire.Frame{Type: wire.FrameHello, MemberID: r.MemberID, SeqHead: r.SeqHead()}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	for {
		batch, err := r.Pending(0)
		if err != nil {
			return err
		}
		if len(batch.Ops) == 0 {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		}
		if err := writeFrame(conn, submitFrame(batch)); err != nil {
			return fmt.Errorf("send operations: %w", err)
		}
		if err := r.awaitAck(conn, batch.FirstClientSeq+int64(len(batch.Ops))-1); err != nil {
			return err
		}
	}
}

func (r *Router) awaitAck(conn *websocket.Conn, last int64) error {
	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("await acknowledgement: %w", err)
		}
		switch frame.Type {
		case wire.FrameError:
			return frame.Error.Err()
		case wire.FrameAck:
			r.AcknowledgeThrough(frame.Acked)
			if frame.Acked >= last {
				return nil
			}
		}
	}
}

func submitFrame(batch hostsync.Batch) wire.Frame {
	return wire.Frame{Type: wire.FrameSubmit, BaseSeq: batch.BaseSeq, FirstClientSeq: batch.FirstClientSeq, ClientOps: batch.Ops}
}

func IsPermanent(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrNotSessionMember) ||
		errors.Is(err, domain.ErrMalformedOperation) ||
		errors.Is(err, domain.ErrUnknownOperation) ||
		errors.Is(err, domain.ErrInvalidToken)
}

func writeFrame(conn *websocket.Conn, frame wire.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}
