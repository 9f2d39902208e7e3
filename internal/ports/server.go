package ports

import (
	"context"
	"time"

	"github.com/bnema/odfops/internal/domain"
)

// Server is the client side of a session host.
type Server interface {
	Connect(ctx context.Context, timeout time.Duration) domain.NetworkStatus
	Login(ctx context.Context, login, password string) (domain.LoginResult, error)
	JoinSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (domain.JoinResult, error)
	LeaveSession(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) error
}

// OpSyncer exchanges operations with the session host.
type OpSyncer interface {
	Sync(ctx context.Context, req domain.SyncRequest) (domain.SyncResponse, error)
}
