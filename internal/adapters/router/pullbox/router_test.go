package pullbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	docmemory "github.com/bnema/odfops/internal/adapters/document/memory"
	logmemory "github.com/bnema/odfops/internal/adapters/oplog/memory"
	"github.com/bnema/odfops/internal/application"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
	portmocks "github.com/bnema/odfops/internal/ports/mocks"
)

func fastConfig() Config {
	return Config{PollInterval: 5 * time.Millisecond, MaxRetries: 0, MaxFailedSyncs: 2}
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

type eventLog struct {
	mu     sync.Mutex
	events []ports.RouterEvent
}

func (l *eventLog) record(event ports.RouterEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) find(kind ports.RouterEventKind, match func(ports.RouterEvent) bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range l.events {
		if event.Kind == kind && (match == nil || match(event)) {
			return true
		}
	}
	return false
}

type participant struct {
	member  domain.MemberID
	session *application.Session
	router  *Router
}

func join(t *testing.T, seq *application.Sequencer, sessionID domain.SessionID, name string) participant {
	t.Helper()

	joined, err := seq.Join(context.Background(), domain.User{ID: domain.UserID(name), FullName: name}, sessionID)
	require.NoError(t, err)

	router := New(seq, sessionID, joined.MemberID, WithConfig(fastConfig()), WithBackOff(zeroBackOff))
	session := application.NewSession(docmemory.New(), router, nil)
	t.Cleanup(func() { _ = session.Close(context.Background()) })

	return participant{member: joined.MemberID, session: session, router: router}
}

func insertOp(t *testing.T, member domain.MemberID, text string) ops.Operation {
	t.Helper()

	op, err := ops.NewFactory().Create(ops.InsertTextSpec{Header: ops.Header{MemberID: member}, Position: 0, Text: text})
	require.NoError(t, err)
	return op
}

func TestRouterParticipantsConvergeThroughHost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := application.NewSequencer(logmemory.New(), func() ops.Document { return docmemory.New() })

	participants := []participant{
		join(t, seq, "doc", "ann"),
		join(t, seq, "doc", "bob"),
		join(t, seq, "doc", "cyd"),
	}

	const perMember = 5
	var wg sync.WaitGroup
	for _, p := range participants {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perMember; i++ {
				assert.NoError(t, p.session.Enqueue(insertOp(t, p.member, fmt.Sprintf("%s%d|", p.member, i))))
			}
		}()
	}
	wg.Wait()

	wantHead := int64(len(participants)*2 + len(participants)*perMember)
	require.Eventually(t, func() bool {
		for _, p := range participants {
			if p.router.SeqHead() != wantHead || p.router.HasLocalUnsyncedOps() {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)

	hostState, head, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, wantHead, head)
	for _, p := range participants {
		assert.Equal(t, hostState, p.session.Snapshot(), "replica of %s", p.member)
		assert.True(t, p.router.HasSessionHostConnection())
		assert.Equal(t, ports.RouterActive, p.router.State())
	}

	entries, err := seq.Since(ctx, "doc", 0)
	require.NoError(t, err)
	lastClientSeq := map[domain.MemberID]int64{}
	for _, entry := range entries {
		if entry.ClientSeq == 0 {
			continue
		}
		assert.Equal(t, lastClientSeq[entry.MemberID]+1, entry.ClientSeq, "client order of %s", entry.MemberID)
		lastClientSeq[entry.MemberID] = entry.ClientSeq
	}
	for _, p := range participants {
		assert.Equal(t, int64(perMember), lastClientSeq[p.member])
	}
}

func TestRouterCloseFlushesUnsyncedOps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := application.NewSequencer(logmemory.New(), func() ops.Document { return docmemory.New() })
	p := join(t, seq, "doc", "ann")

	require.NoError(t, p.session.Enqueue(insertOp(t, p.member, "bye")))
	require.NoError(t, p.session.Close(ctx))

	state, _, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "bye", state.Paragraphs[0].Text)
	assert.False(t, p.router.HasLocalUnsyncedOps())
	assert.Equal(t, ports.RouterClosed, p.router.State())
	assert.ErrorIs(t, p.router.Push([]ops.Operation{insertOp(t, p.member, "late")}), domain.ErrRouterClosed)
}

func TestRouterReportsUnsyncedChanges(t *testing.T) {
	t.Parallel()

	seq := application.NewSequencer(logmemory.New(), func() ops.Document { return docmemory.New() })
	p := join(t, seq, "doc", "ann")

	var log eventLog
	p.router.Subscribe(log.record)

	require.NoError(t, p.session.Enqueue(insertOp(t, p.member, "x")))
	require.Eventually(t, func() bool {
		return log.find(ports.RouterEventUnsyncedChanged, func(e ports.RouterEvent) bool { return !e.Flag })
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, log.find(ports.RouterEventUnsyncedChanged, func(e ports.RouterEvent) bool { return e.Flag }))
}

func TestRouterGivesUpWhenHostUnreachable(t *testing.T) {
	t.Parallel()

	syncer := portmocks.NewMockOpSyncer(t)
	syncer.EXPECT().Sync(mock.Anything, mock.Anything).Return(domain.SyncResponse{}, errors.New("connection refused"))

	router := New(syncer, "doc", "m1", WithConfig(fastConfig()), WithBackOff(zeroBackOff))
	var log eventLog
	router.Subscribe(log.record)
	router.SetPlaybackFunction(func(ops.Operation) bool { return true })

	require.Eventually(t, func() bool { return router.State() == ports.RouterError }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, log.find(ports.RouterEventError, func(e ports.RouterEvent) bool {
		return e.State == ports.RouterError && errors.Is(e.Err, domain.ErrHostUnreachable)
	}))
	assert.False(t, router.HasSessionHostConnection())
	assert.ErrorIs(t, router.Push(nil), domain.ErrRouterFailed)
	require.NoError(t, router.Close(context.Background()))
}

func TestRouterStopsOnHostRejection(t *testing.T) {
	t.Parallel()

	syncer := portmocks.NewMockOpSyncer(t)
	syncer.EXPECT().Sync(mock.Anything, mock.Anything).Return(domain.SyncResponse{Result: domain.SyncError, Error: domain.SyncErrNoMember}, nil).Once()

	router := New(syncer, "doc", "m1", WithConfig(fastConfig()), WithBackOff(zeroBackOff))
	var log eventLog
	router.Subscribe(log.record)
	router.SetPlaybackFunction(func(ops.Operation) bool { return true })

	require.Eventually(t, func() bool { return router.State() == ports.RouterError }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, log.find(ports.RouterEventError, func(e ports.RouterEvent) bool {
		return errors.Is(e.Err, domain.ErrNotSessionMember)
	}))
}

func TestRouterRejectsBatchWithUnknownOperation(t *testing.T) {
	t.Parallel()

	good, err := ops.Encode(insertOp(t, "m2", "x"))
	require.NoError(t, err)

	syncer := portmocks.NewMockOpSyncer(t)
	syncer.EXPECT().Sync(mock.Anything, mock.Anything).Return(domain.SyncResponse{
		Result:  domain.SyncNewOps,
		HeadSeq: 2,
		Ops: []domain.SequencedOp{
			{Seq: 1, MemberID: "m2", Op: good},
			{Seq: 2, MemberID: "m2", Op: json.RawMessage(`{"optype":"AddAnnotation","memberid":"m2","timestamp":1}`)},
		},
	}, nil).Once()

	router := New(syncer, "doc", "m1", WithConfig(fastConfig()), WithBackOff(zeroBackOff))
	var log eventLog
	router.Subscribe(log.record)

	var played int
	router.SetPlaybackFunction(func(ops.Operation) bool {
		played++
		return true
	})

	require.Eventually(t, func() bool { return router.State() == ports.RouterError }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, played)
	assert.Zero(t, router.SeqHead())
	assert.True(t, log.find(ports.RouterEventError, func(e ports.RouterEvent) bool {
		return errors.Is(e.Err, domain.ErrUnknownOperation)
	}))
}

func TestRouterCloseGivesUpFlushWhenHostUnreachable(t *testing.T) {
	t.Parallel()

	syncer := portmocks.NewMockOpSyncer(t)
	syncer.EXPECT().Sync(mock.Anything, mock.Anything).Return(domain.SyncResponse{}, errors.New("connection refused"))

	cfg := Config{PollInterval: time.Hour, MaxRetries: 0, MaxFailedSyncs: 100}
	router := New(syncer, "doc", "m1", WithConfig(cfg), WithBackOff(zeroBackOff))
	router.SetPlaybackFunction(func(ops.Operation) bool { return true })
	require.NoError(t, router.Push([]ops.Operation{insertOp(t, "m1", "x")}))

	closed := make(chan error, 1)
	go func() { closed <- router.Close(context.Background()) }()

	select {
	case err := <-closed:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	case <-time.After(5 * time.Second):
		t.Fatal("close kept retrying the flush")
	}
	assert.True(t, router.HasLocalUnsyncedOps())
}
