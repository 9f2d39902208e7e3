package application

import (
	"context"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

// ServerCalls exposes a ports.Server with one-shot callbacks: every call
// invokes exactly one of its success or failure functions.
type ServerCalls struct {
	server ports.Server
}

func NewServerCalls(server ports.Server) ServerCalls {
	return ServerCalls{server: server}
}

func (c ServerCalls) Login(ctx context.Context, login, password string, onSuccess func(domain.LoginResult), onFail func(error)) {
	result, err := c.server.Login(ctx, login, password)
	if err != nil {
		onFail(err)
		return
	}
	onSuccess(result)
}

func (c ServerCalls) JoinSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, onSuccess func(domain.JoinResult), onFail func(error)) {
	result, err := c.server.JoinSession(ctx, userID, sessionID)
	if err != nil {
		onFail(err)
		return
	}
	onSuccess(result)
}

func (c ServerCalls) LeaveSession(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID, onSuccess func(), onFail func(error)) {
	if err := c.server.LeaveSession(ctx, sessionID, memberID); err != nil {
		onFail(err)
		return
	}
	onSuccess()
}
