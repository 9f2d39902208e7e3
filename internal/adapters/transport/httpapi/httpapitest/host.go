// Package httpapitest runs a complete session host on an httptest server.
package httpapitest

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	docmemory "github.com/bnema/odfops/internal/adapters/document/memory"
	logmemory "github.com/bnema/odfops/internal/adapters/oplog/memory"
	tomlrepo "github.com/bnema/odfops/internal/adapters/repo/toml"
	"github.com/bnema/odfops/internal/adapters/token/jwt"
	"github.com/bnema/odfops/internal/adapters/transport/httpapi"
	"github.com/bnema/odfops/internal/application"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
)

// Password is the password of every user the host is seeded with.
const Password = "correct horse"

type Host struct {
	Server    *httptest.Server
	Sequencer *application.Sequencer
	Auth      *application.AuthService
	Users     map[string]domain.User
}

// New starts a host with one user per login.
func New(t *testing.T, logins ...string) *Host {
	t.Helper()

	config := viper.New()
	config.Set(tomlrepo.UsersPathKey, filepath.Join(t.TempDir(), "users.toml"))
	users, err := tomlrepo.NewRepository(config)
	require.NoError(t, err)

	issuer, err := jwt.NewIssuer([]byte("test signing key"))
	require.NoError(t, err)

	auth := application.NewAuthService(users, issuer).WithHashCost(bcrypt.MinCost)
	seeded := make(map[string]domain.User, len(logins))
	for _, login := range logins {
		user, err := auth.AddUser(context.Background(), application.AddUserCommand{
			Login:    login,
			Password: Password,
			FullName: strings.ToUpper(login[:1]) + login[1:],
		})
		require.NoError(t, err)
		seeded[login] = user
	}

	seq := application.NewSequencer(logmemory.New(), func() ops.Document { return docmemory.New() })
	server := httptest.NewServer(httpapi.New(seq, auth, httpapi.WithLiveBuffer(256)).Handler())
	t.Cleanup(server.Close)

	return &Host{Server: server, Sequencer: seq, Auth: auth, Users: seeded}
}

func (h *Host) Token(t *testing.T, login string) string {
	t.Helper()

	result, err := h.Auth.Login(context.Background(), login, Password)
	require.NoError(t, err)
	return result.Token
}

func (h *Host) LiveURL(sessionID domain.SessionID) string {
	return "ws" + strings.TrimPrefix(h.Server.URL, "http") + "/sessions/" + string(sessionID) + "/live"
}
