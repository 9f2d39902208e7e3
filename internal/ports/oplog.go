package ports

import (
	"context"

	"github.com/bnema/odfops/internal/domain"
)

// OperationLog stores the sequenced operations of every session.
type OperationLog interface {
	// Append stores entries whose Seq continues the session head. A gap or
	// an already used Seq is an error and stores nothing.
	Append(ctx context.Context, sessionID domain.SessionID, entries []domain.SequencedOp) error
	Since(ctx context.Context, sessionID domain.SessionID, after int64) ([]domain.SequencedOp, error)
	Head(ctx context.Context, sessionID domain.SessionID) (int64, error)
	LastClientSeq(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) (int64, error)
	Sessions(ctx context.Context) ([]domain.SessionID, error)
}
