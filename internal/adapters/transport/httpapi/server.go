// Package httpapi exposes a session host over HTTP and websockets.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	docmemory "github.com/bnema/odfops/internal/adapters/document/memory"
	"github.com/bnema/odfops/internal/adapters/transport/wire"
	"github.com/bnema/odfops/internal/domain"
)

type Host interface {
	Join(ctx context.Context, user domain.User, sessionID domain.SessionID) (domain.JoinResult, error)
	Leave(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) error
	Sync(ctx context.Context, req domain.SyncRequest) (domain.SyncResponse, error)
	Submit(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID, baseSeq, firstClientSeq int64, batch []json.RawMessage) (int64, error)
	Since(ctx context.Context, sessionID domain.SessionID, after int64) ([]domain.SequencedOp, error)
	Subscribe(ctx context.Context, sessionID domain.SessionID, fn func([]domain.SequencedOp)) (func(), error)
	IsMember(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) (bool, error)
	State(ctx context.Context, sessionID domain.SessionID) (domain.DocumentState, int64, error)
	Sessions(ctx context.Context) ([]domain.SessionID, error)
}

type Authenticator interface {
	Login(ctx context.Context, login, password string) (domain.LoginResult, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

type Server struct {
	host     Host
	auth     Authenticator
	logger   *slog.Logger
	upgrader websocket.Upgrader
	liveBuf  int
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLiveBuffer bounds how many batches may queue for one live client
// before it is disconnected.
func WithLiveBuffer(batches int) Option {
	return func(s *Server) {
		if batches > 0 {
			s.liveBuf = batches
		}
	}
}

func New(host Host, auth Authenticator, opts ...Option) *Server {
	s := &Server{
		host:   host,
		auth:   auth,
		logger: slog.New(slog.DiscardHandler),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		liveBuf: 64,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLog)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.healthz)
	r.Methods(http.MethodPost).Path("/login").HandlerFunc(s.login)

	api := r.NewRoute().Subrouter()
	api.Use(s.requireUser)
	api.Methods(http.MethodGet).Path("/sessions").HandlerFunc(s.listSessions)
	api.Methods(http.MethodPost).Path("/sessions/{session}/join").HandlerFunc(s.join)
	api.Methods(http.MethodPost).Path("/sessions/{session}/leave").HandlerFunc(s.leave)
	api.Methods(http.MethodPost).Path("/sessions/{session}/sync").HandlerFunc(s.sync)
	api.Methods(http.MethodGet).Path("/sessions/{session}/state").HandlerFunc(s.state)
	api.Methods(http.MethodGet).Path("/sessions/{session}/live").HandlerFunc(s.live)

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled", "method", r.Method, "url", r.URL.Path, "duration", m.Duration, "status", m.Code)
	})
}

type userKey struct{}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.writeError(w, fmt.Errorf("%w: missing bearer token", domain.ErrInvalidToken))
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(ctx context.Context) domain.User {
	user, _ := ctx.Value(userKey{}).(domain.User)
	return user
}

func sessionFrom(r *http.Request) domain.SessionID {
	return domain.SessionID(mux.Vars(r)["session"])
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.NetworkReady)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req wire.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, wire.LoginResponse{UserID: result.UserID, Token: result.Token})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.host.Sessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, wire.SessionsResponse{Sessions: sessions})
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	result, err := s.host.Join(r.Context(), userFrom(r.Context()), sessionFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, wire.NewJoinResponse(result))
}

func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	var req wire.LeaveRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.host.Leave(r.Context(), sessionFrom(r), req.MemberID); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	var req domain.SyncRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.SessionID = sessionFrom(r)

	resp, err := s.host.Sync(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r)
	state, head, err := s.host.State(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	digest, err := docmemory.Digest(state)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, wire.StateResponse{SessionID: sessionID, Head: head, Digest: digest, State: state})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, wire.ErrorResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, wire.ErrorResponse{Error: err.Error()})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotSessionMember):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMalformedOperation), errors.Is(err, domain.ErrUnknownOperation):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
