package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/events"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

type SyncError struct {
	Code domain.SyncErrorCode
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

type hostSession struct {
	replica     ops.Document
	head        int64
	handled     map[domain.MemberID]int64
	subscribers events.Bus[[]domain.SequencedOp]
}

// Sequencer assigns every accepted operation its place in the session order.
type Sequencer struct {
	mu         sync.Mutex
	log        ports.OperationLog
	newReplica func() ops.Document
	factory    *ops.Factory
	clock      ports.Clock
	logger     *slog.Logger
	newID      func() string
	sessions   map[domain.SessionID]*hostSession
}

type SequencerOption func(*Sequencer)

func WithSequencerClock(clock ports.Clock) SequencerOption {
	return func(s *Sequencer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithSequencerLogger(logger *slog.Logger) SequencerOption {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMemberIDs(newID func() string) SequencerOption {
	return func(s *Sequencer) {
		if newID != nil {
			s.newID = newID
		}
	}
}

var _ ports.OpSyncer = (*Sequencer)(nil)

func NewSequencer(log ports.OperationLog, newReplica func() ops.Document, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		log:        log,
		newReplica: newReplica,
		factory:    ops.NewFactory(),
		clock:      ports.SystemClock{},
		logger:     slog.New(slog.DiscardHandler),
		newID:      func() string { return ulid.Make().String() },
		sessions:   map[domain.SessionID]*hostSession{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Join admits user, creating the session on first join.
func (s *Sequencer) Join(ctx context.Context, user domain.User, sessionID domain.SessionID) (domain.JoinResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.JoinResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.loadSession(ctx, sessionID, true)
	if err != nil {
		return domain.JoinResult{}, err
	}

	memberID := domain.MemberID(s.newID())
	props := domain.NewMember(memberID, user.MemberProperties()).Properties
	now := s.clock.Now().UnixMilli()

	addMember, err := s.factory.Create(ops.AddMemberSpec{Header: ops.Header{MemberID: memberID, Timestamp: now}, SetProperties: props})
	if err != nil {
		return domain.JoinResult{}, fmt.Errorf("create add member operation: %w", err)
	}
	addCursor, err := s.factory.Create(ops.AddCursorSpec{Header: ops.Header{MemberID: memberID, Timestamp: now}})
	if err != nil {
		return domain.JoinResult{}, fmt.Errorf("create add cursor operation: %w", err)
	}

	if err := s.appendHostOps(ctx, sessionID, session, addMember, addCursor); err != nil {
		return domain.JoinResult{}, err
	}

	s.logger.Info("member joined session", "session", sessionID, "member", memberID, "user", user.ID)
	return domain.JoinResult{SessionID: sessionID, MemberID: memberID, Properties: props, HeadSeq: session.head}, nil
}

func (s *Sequencer) Leave(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.loadSession(ctx, sessionID, false)
	if err != nil {
		return err
	}
	if _, ok := session.replica.GetMember(memberID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotSessionMember, memberID)
	}

	now := s.clock.Now().UnixMilli()
	removeCursor, err := s.factory.Create(ops.RemoveCursorSpec{Header: ops.Header{MemberID: memberID, Timestamp: now}})
	if err != nil {
		return fmt.Errorf("create remove cursor operation: %w", err)
	}
	removeMember, err := s.factory.Create(ops.RemoveMemberSpec{Header: ops.Header{MemberID: memberID, Timestamp: now}})
	if err != nil {
		return fmt.Errorf("create remove member operation: %w", err)
	}

	if err := s.appendHostOps(ctx, sessionID, session, removeCursor, removeMember); err != nil {
		return err
	}

	s.logger.Info("member left session", "session", sessionID, "member", memberID)
	return nil
}

// Sync returns protocol rejections as an error result.
func (s *Sequencer) Sync(ctx context.Context, req domain.SyncRequest) (domain.SyncResponse, error) {
	head, err := s.Submit(ctx, req.SessionID, req.MemberID, req.BaseSeq, req.FirstClientSeq, req.Ops)
	if err != nil {
		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			s.logger.Warn("sync rejected", "session", req.SessionID, "member", req.MemberID, "code", syncErr.Code, "error", syncErr.Err)
			return domain.SyncResponse{Result: domain.SyncError, HeadSeq: head, Error: syncErr.Code}, nil
		}
		return domain.SyncResponse{}, err
	}

	entries, err := s.log.Since(ctx, req.SessionID, req.SeqHead)
	if err != nil {
		return domain.SyncResponse{}, fmt.Errorf("read operation log: %w", err)
	}
	if len(entries) > 0 {
		head = entries[len(entries)-1].Seq
	}

	result := domain.SyncNewOps
	if len(req.Ops) > 0 {
		result = domain.SyncAdded
	}

	return domain.SyncResponse{Result: result, HeadSeq: head, Ops: entries}, nil
}

// Submit skips operations whose client sequence was already handled and
// transforms the rest past what other members sequenced since baseSeq.
func (s *Sequencer) Submit(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID, baseSeq, firstClientSeq int64, batch []json.RawMessage) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.loadSession(ctx, sessionID, false)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return 0, &SyncError{Code: domain.SyncErrNoSession, Err: err}
		}
		return 0, err
	}
	if _, ok := session.replica.GetMember(memberID); !ok {
		return session.head, &SyncError{Code: domain.SyncErrNoMember, Err: fmt.Errorf("%w: %s", domain.ErrNotSessionMember, memberID)}
	}
	if len(batch) == 0 {
		return session.head, nil
	}

	operations, err := s.factory.DecodeBatch(batch)
	if err != nil {
		return session.head, &SyncError{Code: domain.SyncErrBadOp, Err: err}
	}
	if firstClientSeq < 1 {
		return session.head, &SyncError{Code: domain.SyncErrBadOp, Err: fmt.Errorf("%w: first client sequence must be positive", domain.ErrMalformedOperation)}
	}
	if baseSeq < 0 || baseSeq > session.head {
		return session.head, &SyncError{Code: domain.SyncErrBadOp, Err: fmt.Errorf("%w: base sequence %d outside 0..%d", domain.ErrMalformedOperation, baseSeq, session.head)}
	}
	for _, op := range operations {
		if op.MemberID() != memberID {
			return session.head, &SyncError{Code: domain.SyncErrBadOp, Err: fmt.Errorf("%w: operation of %s submitted by %s", domain.ErrMalformedOperation, op.MemberID(), memberID)}
		}
	}

	last, err := s.log.LastClientSeq(ctx, sessionID, memberID)
	if err != nil {
		return session.head, fmt.Errorf("read last client sequence: %w", err)
	}
	last = max(last, session.handled[memberID])
	if firstClientSeq > last+1 {
		return session.head, &SyncError{Code: domain.SyncErrBadOp, Err: fmt.Errorf("%w: client sequence gap after %d", domain.ErrMalformedOperation, last)}
	}

	skip := int(last - firstClientSeq + 1)
	if skip >= len(operations) {
		return session.head, nil
	}
	if skip < 0 {
		skip = 0
	}

	rebased, err := s.rebase(ctx, sessionID, memberID, baseSeq, operations[skip:])
	if err != nil {
		return session.head, err
	}

	entries := make([]domain.SequencedOp, 0, len(operations)-skip)
	accepted := make([]ops.Operation, 0, len(operations)-skip)
	for i, each := range rebased {
		for _, op := range each {
			encoded, err := ops.Encode(op)
			if err != nil {
				return session.head, err
			}
			entries = append(entries, domain.SequencedOp{
				Seq:       session.head + int64(len(entries)) + 1,
				MemberID:  memberID,
				ClientSeq: firstClientSeq + int64(skip+i),
				Op:        encoded,
			})
			accepted = append(accepted, op)
		}
	}

	if len(entries) > 0 {
		if err := s.commit(ctx, sessionID, session, entries, accepted); err != nil {
			return session.head, err
		}
	}
	session.handled[memberID] = firstClientSeq + int64(len(operations)) - 1

	return session.head, nil
}

func (s *Sequencer) rebase(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID, baseSeq int64, operations []ops.Operation) ([][]ops.Operation, error) {
	var concurrent []ops.Operation
	if baseSeq > 0 {
		entries, err := s.log.Since(ctx, sessionID, baseSeq)
		if err != nil {
			return nil, fmt.Errorf("read operation log: %w", err)
		}
		for _, entry := range entries {
			if entry.MemberID == memberID {
				continue
			}
			op, err := s.factory.Decode(entry.Op)
			if err != nil {
				return nil, fmt.Errorf("decode logged operation %d: %w", entry.Seq, err)
			}
			concurrent = append(concurrent, op)
		}
	}

	rebased, err := s.factory.Transform(operations, concurrent)
	if err != nil {
		return nil, &SyncError{Code: domain.SyncErrBadOp, Err: err}
	}
	if len(concurrent) > 0 {
		s.logger.Debug("rebased operations", "session", sessionID, "member", memberID, "base", baseSeq, "concurrent", len(concurrent))
	}

	return rebased, nil
}

func (s *Sequencer) Since(ctx context.Context, sessionID domain.SessionID, after int64) ([]domain.SequencedOp, error) {
	s.mu.Lock()
	_, err := s.loadSession(ctx, sessionID, false)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	entries, err := s.log.Since(ctx, sessionID, after)
	if err != nil {
		return nil, fmt.Errorf("read operation log: %w", err)
	}

	return entries, nil
}

// Subscribe registers fn for every batch the session appends from now on.
// fn runs while the host is locked and must not block.
func (s *Sequencer) Subscribe(ctx context.Context, sessionID domain.SessionID, fn func([]domain.SequencedOp)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.loadSession(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}

	return session.subscribers.Subscribe(fn), nil
}

func (s *Sequencer) IsMember(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.loadSession(ctx, sessionID, false)
	if err != nil {
		return false, err
	}

	_, ok := session.replica.GetMember(memberID)
	return ok, nil
}

func (s *Sequencer) State(ctx context.Context, sessionID domain.SessionID) (domain.DocumentState, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.loadSession(ctx, sessionID, false)
	if err != nil {
		return domain.DocumentState{}, 0, err
	}

	return session.replica.Snapshot(), session.head, nil
}

func (s *Sequencer) Sessions(ctx context.Context) ([]domain.SessionID, error) {
	stored, err := s.log.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logged sessions: %w", err)
	}

	s.mu.Lock()
	seen := map[domain.SessionID]struct{}{}
	for _, id := range stored {
		seen[id] = struct{}{}
	}
	for id := range s.sessions {
		seen[id] = struct{}{}
	}
	s.mu.Unlock()

	ids := make([]domain.SessionID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func (s *Sequencer) appendHostOps(ctx context.Context, sessionID domain.SessionID, session *hostSession, operations ...ops.Operation) error {
	entries := make([]domain.SequencedOp, 0, len(operations))
	for i, op := range operations {
		encoded, err := ops.Encode(op)
		if err != nil {
			return err
		}
		entries = append(entries, domain.SequencedOp{
			Seq:      session.head + int64(i) + 1,
			MemberID: op.MemberID(),
			Op:       encoded,
		})
	}

	return s.commit(ctx, sessionID, session, entries, operations)
}

func (s *Sequencer) commit(ctx context.Context, sessionID domain.SessionID, session *hostSession, entries []domain.SequencedOp, operations []ops.Operation) error {
	if err := s.log.Append(ctx, sessionID, entries); err != nil {
		return fmt.Errorf("append operation log: %w", err)
	}

	for _, op := range operations {
		if !op.Execute(session.replica) {
			s.logger.Debug("host replica rejected operation", "session", sessionID, "optype", op.Type(), "memberid", op.MemberID())
		}
	}
	session.head = entries[len(entries)-1].Seq
	session.subscribers.Publish(entries)

	return nil
}

func (s *Sequencer) loadSession(ctx context.Context, sessionID domain.SessionID, create bool) (*hostSession, error) {
	if session, ok := s.sessions[sessionID]; ok {
		return session, nil
	}

	head, err := s.log.Head(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read operation log head: %w", err)
	}
	if head == 0 && !create {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	session := &hostSession{replica: s.newReplica(), handled: map[domain.MemberID]int64{}}
	if head > 0 {
		entries, err := s.log.Since(ctx, sessionID, 0)
		if err != nil {
			return nil, fmt.Errorf("read operation log: %w", err)
		}
		for _, entry := range entries {
			op, err := s.factory.Decode(entry.Op)
			if err != nil {
				return nil, fmt.Errorf("decode logged operation %d: %w", entry.Seq, err)
			}
			op.Execute(session.replica)
			session.head = entry.Seq
		}
		s.logger.Info("session restored from operation log", "session", sessionID, "head", session.head)
	}

	s.sessions[sessionID] = session
	return session, nil
}
