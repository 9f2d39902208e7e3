package ports

import (
	"context"

	"github.com/bnema/odfops/internal/domain"
)

type TokenIssuer interface {
	Issue(ctx context.Context, userID domain.UserID) (string, error)
	Verify(ctx context.Context, token string) (domain.UserID, error)
}
