package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

var _ ports.OperationLog = (*Log)(nil)

// Log keeps sequenced operations in process memory.
type Log struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID][]domain.SequencedOp
}

func New() *Log {
	return &Log{sessions: map[domain.SessionID][]domain.SequencedOp{}}
}

func (l *Log) Append(ctx context.Context, sessionID domain.SessionID, entries []domain.SequencedOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	head := int64(len(l.sessions[sessionID]))
	for i, entry := range entries {
		if want := head + int64(i) + 1; entry.Seq != want {
			return fmt.Errorf("%w: session %s expected seq %d, got %d", domain.ErrSequenceConflict, sessionID, want, entry.Seq)
		}
	}

	for _, entry := range entries {
		entry.Op = append([]byte(nil), entry.Op...)
		l.sessions[sessionID] = append(l.sessions[sessionID], entry)
	}

	return nil
}

func (l *Log) Since(ctx context.Context, sessionID domain.SessionID, after int64) ([]domain.SequencedOp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if after < 0 {
		after = 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	stored := l.sessions[sessionID]
	if after >= int64(len(stored)) {
		return nil, nil
	}

	out := make([]domain.SequencedOp, len(stored)-int(after))
	copy(out, stored[after:])
	return out, nil
}

func (l *Log) Head(ctx context.Context, sessionID domain.SessionID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return int64(len(l.sessions[sessionID])), nil
}

func (l *Log) LastClientSeq(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var last int64
	for _, entry := range l.sessions[sessionID] {
		if entry.MemberID == memberID && entry.ClientSeq > last {
			last = entry.ClientSeq
		}
	}

	return last, nil
}

func (l *Log) Sessions(ctx context.Context) ([]domain.SessionID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]domain.SessionID, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}
