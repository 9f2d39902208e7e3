package ports

import (
	"context"

	"github.com/bnema/odfops/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
	GetByLogin(ctx context.Context, login string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Save(ctx context.Context, user domain.User) error
}
