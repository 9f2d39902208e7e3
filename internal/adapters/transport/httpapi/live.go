package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/odfops/internal/adapters/transport/wire"
	"github.com/bnema/odfops/internal/domain"
)

const (
	liveHelloTimeout = 10 * time.Second
	liveWriteTimeout = 10 * time.Second
)

var (
	errLiveRejected = errors.New("live client rejected")
	errLiveTooSlow  = errors.New("live client too slow")
)

func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "session", sessionID, "error", err)
		return
	}
	defer conn.Close()

	err = s.serveLive(r.Context(), conn, sessionID)
	switch {
	case err == nil, websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.logger.Debug("live client disconnected", "session", sessionID)
	default:
		s.logger.Warn("live connection ended", "session", sessionID, "error", err)
	}
}

func (s *Server) serveLive(ctx context.Context, conn *websocket.Conn, sessionID domain.SessionID) error {
	var hello wire.Frame
	_ = conn.SetReadDeadline(time.Now().Add(liveHelloTimeout))
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if hello.Type != wire.FrameHello {
		return s.rejectLive(conn, domain.SyncErrBadOp)
	}

	member, err := s.host.IsMember(ctx, sessionID, hello.MemberID)
	if err != nil {
		if code, ok := domain.SyncErrorCodeFor(err); ok {
			return s.rejectLive(conn, code)
		}
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return s.rejectLive(conn, domain.SyncErrNoMember)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	batches := make(chan []domain.SequencedOp, s.liveBuf)
	var overflow sync.Once
	unsubscribe, err := s.host.Subscribe(ctx, sessionID, func(entries []domain.SequencedOp) {
		select {
		case batches <- entries:
		default:
			overflow.Do(func() { cancel(errLiveTooSlow) })
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to session: %w", err)
	}
	defer unsubscribe()

	backlog, err := s.host.Since(ctx, sessionID, hello.SeqHead)
	if err != nil {
		return fmt.Errorf("read backlog: %w", err)
	}

	replies := make(chan wire.Frame, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		return s.readLive(gctx, conn, sessionID, hello.MemberID, replies)
	})
	g.Go(func() error {
		return s.writeLive(gctx, conn, hello.SeqHead, backlog, batches, replies)
	})

	err = g.Wait()
	if cause := context.Cause(ctx); errors.Is(cause, errLiveTooSlow) {
		return cause
	}
	return err
}

func (s *Server) readLive(ctx context.Context, conn *websocket.Conn, sessionID domain.SessionID, memberID domain.MemberID, replies chan<- wire.Frame) error {
	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Type != wire.FrameSubmit || len(frame.ClientOps) == 0 {
			continue
		}

		reply := wire.Frame{Type: wire.FrameAck, Acked: frame.FirstClientSeq + int64(len(frame.ClientOps)) - 1}
		head, err := s.host.Submit(ctx, sessionID, memberID, frame.BaseSeq, frame.FirstClientSeq, frame.ClientOps)
		if err != nil {
			code, ok := domain.SyncErrorCodeFor(err)
			if !ok {
				return fmt.Errorf("submit operations: %w", err)
			}
			s.logger.Warn("live submit rejected", "session", sessionID, "member", memberID, "code", code, "error", err)
			reply = wire.Frame{Type: wire.FrameError, Error: code}
		}
		reply.HeadSeq = head

		select {
		case replies <- reply:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) writeLive(ctx context.Context, conn *websocket.Conn, seqHead int64, backlog []domain.SequencedOp, batches <-chan []domain.SequencedOp, replies <-chan wire.Frame) error {
	sent := seqHead
	sendOps := func(entries []domain.SequencedOp) error {
		fresh := entries[:0:0]
		for _, entry := range entries {
			if entry.Seq > sent {
				fresh = append(fresh, entry)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		sent = fresh[len(fresh)-1].Seq
		return writeFrame(conn, wire.Frame{Type: wire.FrameOps, Ops: fresh, HeadSeq: sent})
	}

	if err := sendOps(backlog); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case entries := <-batches:
			if err := sendOps(entries); err != nil {
				return err
			}
		case reply := <-replies:
			if err := writeFrame(conn, reply); err != nil {
				return err
			}
			if reply.Type == wire.FrameError {
				return errLiveRejected
			}
		}
	}
}

func (s *Server) rejectLive(conn *websocket.Conn, code domain.SyncErrorCode) error {
	if err := writeFrame(conn, wire.Frame{Type: wire.FrameError, Error: code}); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", errLiveRejected, code)
}

func writeFrame(conn *websocket.Conn, frame wire.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return conn.WriteJSON(frame)
}
