package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

// Session binds one document to one operation router.
type Session struct {
	doc      ops.Document
	router   ports.OperationRouter
	notifier *Notifier
	factory  *ops.Factory
	clock    ports.Clock
	logger   *slog.Logger

	execMu sync.Mutex

	mu                sync.Mutex
	closed            bool
	unsubscribeRouter func()
}

type SessionOption func(*Session)

func WithSessionClock(clock ports.Clock) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSessionFactory(factory *ops.Factory) SessionOption {
	return func(s *Session) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// NewSession takes ownership of doc and router. notifier must be the emitter
// doc was built with, or nil when nobody listens to document events.
func NewSession(doc ops.Document, router ports.OperationRouter, notifier *Notifier, opts ...SessionOption) *Session {
	if notifier == nil {
		notifier = NewNotifier()
	}

	s := &Session{
		doc:      doc,
		router:   router,
		notifier: notifier,
		factory:  ops.NewFactory(),
		clock:    ports.SystemClock{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	router.SetOperationFactory(s.factory)
	s.unsubscribeRouter = router.Subscribe(s.logRouterEvent)
	router.SetPlaybackFunction(s.playback)

	return s
}

func (s *Session) Enqueue(operations ...ops.Operation) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrSessionClosed
	}
	if len(operations) == 0 {
		return nil
	}

	if err := s.router.Push(operations); err != nil {
		return fmt.Errorf("push operations: %w", err)
	}

	return nil
}

func (s *Session) AddMemberToSession(id domain.MemberID, props domain.MemberProperties) error {
	now := s.clock.Now().UnixMilli()
	addMember, err := s.factory.Create(ops.AddMemberSpec{Header: ops.Header{MemberID: id, Timestamp: now}, SetProperties: props})
	if err != nil {
		return fmt.Errorf("create add member operation: %w", err)
	}
	addCursor, err := s.factory.Create(ops.AddCursorSpec{Header: ops.Header{MemberID: id, Timestamp: now}})
	if err != nil {
		return fmt.Errorf("create add cursor operation: %w", err)
	}

	return s.Enqueue(addMember, addCursor)
}

func (s *Session) RemoveMemberFromSession(id domain.MemberID) error {
	now := s.clock.Now().UnixMilli()
	removeCursor, err := s.factory.Create(ops.RemoveCursorSpec{Header: ops.Header{MemberID: id, Timestamp: now}})
	if err != nil {
		return fmt.Errorf("create remove cursor operation: %w", err)
	}
	removeMember, err := s.factory.Create(ops.RemoveMemberSpec{Header: ops.Header{MemberID: id, Timestamp: now}})
	if err != nil {
		return fmt.Errorf("create remove member operation: %w", err)
	}

	return s.Enqueue(removeCursor, removeMember)
}

func (s *Session) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	return s.notifier.Subscribe(fn)
}

func (s *Session) SubscribeRouter(fn func(ports.RouterEvent)) (unsubscribe func()) {
	return s.router.Subscribe(fn)
}

func (s *Session) Document() ops.DocumentReader {
	return s.doc
}

func (s *Session) Snapshot() domain.DocumentState {
	return s.doc.Snapshot()
}

func (s *Session) Factory() *ops.Factory {
	return s.factory
}

func (s *Session) RouterState() ports.RouterState {
	return s.router.State()
}

func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.router.Close(ctx)
	s.unsubscribeRouter()
	if err != nil {
		return fmt.Errorf("close operation router: %w", err)
	}

	return nil
}

func (s *Session) playback(op ops.Operation) bool {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	if !op.Execute(s.doc) {
		s.logger.Debug("operation rejected by guard", "optype", op.Type(), "memberid", op.MemberID())
		return false
	}

	s.notifier.Emit(domain.Event{
		Kind:      domain.EventOperationExecuted,
		MemberID:  op.MemberID(),
		Timestamp: op.Timestamp(),
		Payload:   op,
	})
	return true
}

func (s *Session) logRouterEvent(event ports.RouterEvent) {
	switch event.Kind {
	case ports.RouterEventError:
		level := slog.LevelWarn
		if errors.Is(event.Err, domain.ErrHostUnreachable) {
			level = slog.LevelError
		}
		s.logger.Log(context.Background(), level, "operation router error", "error", event.Err)
	case ports.RouterEventFallback:
		s.logger.Warn("session host lost, continuing with local editing", "error", event.Err)
	case ports.RouterEventStateChanged:
		s.logger.Debug("operation router state changed", "state", event.State)
	}
}
