package application

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docmemory "github.com/bnema/odfops/internal/adapters/document/memory"
	logmemory "github.com/bnema/odfops/internal/adapters/oplog/memory"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
	"github.com/bnema/odfops/internal/ports/mocks"
)

func newTestSequencer(t *testing.T, log ports.OperationLog) *Sequencer {
	t.Helper()

	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(time.UnixMilli(2000)).Maybe()

	next := 0
	return NewSequencer(log, func() ops.Document { return docmemory.New() },
		WithSequencerClock(clock),
		WithMemberIDs(func() string {
			next++
			return fmt.Sprintf("m%d", next)
		}),
	)
}

func encodeOps(t *testing.T, specs ...ops.Spec) []json.RawMessage {
	t.Helper()

	factory := ops.NewFactory()
	out := make([]json.RawMessage, 0, len(specs))
	for _, spec := range specs {
		op, err := factory.Create(spec)
		require.NoError(t, err)
		data, err := ops.Encode(op)
		require.NoError(t, err)
		out = append(out, data)
	}
	return out
}

func insert(member domain.MemberID, position int, text string) ops.Spec {
	return ops.InsertTextSpec{Header: ops.Header{MemberID: member, Timestamp: 1}, Position: position, Text: text}
}

func TestSequencerJoinSequencesMemberAndCursor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())

	joined, err := seq.Join(ctx, domain.User{ID: "u1", FullName: "Ann"}, "doc")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberID("m1"), joined.MemberID)
	assert.Equal(t, "Ann", joined.Properties.FullName)
	assert.Equal(t, domain.DefaultMemberColor, joined.Properties.Color)

	state, head, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), head)
	require.Len(t, state.Members, 1)
	require.Len(t, state.Cursors, 1)

	member, err := seq.IsMember(ctx, "doc", "m1")
	require.NoError(t, err)
	assert.True(t, member)
}

func TestSequencerSyncAcceptsAndReturnsOrderedOps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())
	_, err := seq.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)

	resp, err := seq.Sync(ctx, domain.SyncRequest{
		SessionID:      "doc",
		MemberID:       "m1",
		SeqHead:        0,
		FirstClientSeq: 1,
		Ops:            encodeOps(t, insert("m1", 0, "ab"), insert("m1", 2, "c")),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncAdded, resp.Result)
	assert.Equal(t, int64(4), resp.HeadSeq)
	require.Len(t, resp.Ops, 4)
	for i, entry := range resp.Ops {
		assert.Equal(t, int64(i+1), entry.Seq)
	}
	assert.Equal(t, int64(2), resp.Ops[3].ClientSeq)

	state, _, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "abc", state.Paragraphs[0].Text)

	poll, err := seq.Sync(ctx, domain.SyncRequest{SessionID: "doc", MemberID: "m1", SeqHead: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncNewOps, poll.Result)
	assert.Equal(t, int64(4), poll.HeadSeq)
	assert.Empty(t, poll.Ops)
}

func TestSequencerSyncDeduplicatesRetriedBatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())
	_, err := seq.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)

	first := encodeOps(t, insert("m1", 0, "a"), insert("m1", 1, "b"))
	req := domain.SyncRequest{SessionID: "doc", MemberID: "m1", SeqHead: 2, FirstClientSeq: 1, Ops: first}

	_, err = seq.Sync(ctx, req)
	require.NoError(t, err)
	retry, err := seq.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncAdded, retry.Result)
	assert.Len(t, retry.Ops, 2)

	req.Ops = append(first, encodeOps(t, insert("m1", 2, "c"))...)
	extended, err := seq.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), extended.HeadSeq)

	state, _, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "abc", state.Paragraphs[0].Text)
}

func TestSequencerSyncErrorCodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())
	_, err := seq.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)

	tests := []struct {
		name string
		req  domain.SyncRequest
		want domain.SyncErrorCode
	}{
		{name: "unknown session", req: domain.SyncRequest{SessionID: "nope", MemberID: "m1"}, want: domain.SyncErrNoSession},
		{name: "unknown member", req: domain.SyncRequest{SessionID: "doc", MemberID: "ghost"}, want: domain.SyncErrNoMember},
		{name: "unknown optype", req: domain.SyncRequest{SessionID: "doc", MemberID: "m1", FirstClientSeq: 1, Ops: []json.RawMessage{json.RawMessage(`{"optype":"AddAnnotation","memberid":"m1","timestamp":1}`)}}, want: domain.SyncErrBadOp},
		{name: "foreign member", req: domain.SyncRequest{SessionID: "doc", MemberID: "m1", FirstClientSeq: 1, Ops: encodeOps(t, insert("m9", 0, "x"))}, want: domain.SyncErrBadOp},
		{name: "client sequence gap", req: domain.SyncRequest{SessionID: "doc", MemberID: "m1", FirstClientSeq: 4, Ops: encodeOps(t, insert("m1", 0, "x"))}, want: domain.SyncErrBadOp},
		{name: "missing client sequence", req: domain.SyncRequest{SessionID: "doc", MemberID: "m1", Ops: encodeOps(t, insert("m1", 0, "x"))}, want: domain.SyncErrBadOp},
		{name: "base ahead of head", req: domain.SyncRequest{SessionID: "doc", MemberID: "m1", BaseSeq: 9, FirstClientSeq: 1, Ops: encodeOps(t, insert("m1", 0, "x"))}, want: domain.SyncErrBadOp},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			resp, err := seq.Sync(ctx, tc.req)
			require.NoError(t, err)
			assert.Equal(t, domain.SyncError, resp.Result)
			assert.Equal(t, tc.want, resp.Error)
		})
	}

	_, head, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), head)
}

func TestSequencerLeaveEndsMembership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())
	_, err := seq.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)

	require.NoError(t, seq.Leave(ctx, "doc", "m1"))
	assert.ErrorIs(t, seq.Leave(ctx, "doc", "m1"), domain.ErrNotSessionMember)
	assert.ErrorIs(t, seq.Leave(ctx, "other", "m1"), domain.ErrSessionNotFound)

	resp, err := seq.Sync(ctx, domain.SyncRequest{SessionID: "doc", MemberID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncErrNoMember, resp.Error)
}

func TestSequencerSubscribersReceiveAppendedBatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())
	_, err := seq.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)

	var batches [][]domain.SequencedOp
	unsubscribe, err := seq.Subscribe(ctx, "doc", func(batch []domain.SequencedOp) { batches = append(batches, batch) })
	require.NoError(t, err)

	_, err = seq.Submit(ctx, "doc", "m1", 0, 1, encodeOps(t, insert("m1", 0, "a")))
	require.NoError(t, err)
	unsubscribe()
	_, err = seq.Submit(ctx, "doc", "m1", 0, 2, encodeOps(t, insert("m1", 1, "b")))
	require.NoError(t, err)

	require.Len(t, batches, 1)
	assert.Equal(t, int64(3), batches[0][0].Seq)

	_, err = seq.Subscribe(ctx, "missing", func([]domain.SequencedOp) {})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSequencerRestoresSessionsFromLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := logmemory.New()
	first := newTestSequencer(t, log)
	_, err := first.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)
	_, err = first.Submit(ctx, "doc", "m1", 0, 1, encodeOps(t, insert("m1", 0, "persisted")))
	require.NoError(t, err)

	want, wantHead, err := first.State(ctx, "doc")
	require.NoError(t, err)

	restarted := newTestSequencer(t, log)
	got, head, err := restarted.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, wantHead, head)

	sessions, err := restarted.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.SessionID{"doc"}, sessions)
}

func TestSequencerRebasesConcurrentEdits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())
	_, err := seq.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)
	joined, err := seq.Join(ctx, domain.User{ID: "u2"}, "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(4), joined.HeadSeq)

	base, err := seq.Submit(ctx, "doc", "m1", joined.HeadSeq, 1, encodeOps(t, insert("m1", 0, "hello")))
	require.NoError(t, err)

	_, err = seq.Submit(ctx, "doc", "m2", base, 1, encodeOps(t, insert("m2", 0, "XYZ")))
	require.NoError(t, err)
	resp, err := seq.Sync(ctx, domain.SyncRequest{
		SessionID:      "doc",
		MemberID:       "m1",
		SeqHead:        base,
		BaseSeq:        base,
		FirstClientSeq: 2,
		Ops:            encodeOps(t, insert("m1", 5, "!")),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncAdded, resp.Result)
	require.Len(t, resp.Ops, 2)

	rebased, err := ops.NewFactory().Decode(resp.Ops[1].Op)
	require.NoError(t, err)
	assert.Equal(t, 8, rebased.Spec().(ops.InsertTextSpec).Position)

	state, _, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "XYZhello!", state.Paragraphs[0].Text)
}

func TestSequencerRebaseDropsEditsWithNothingLeft(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seq := newTestSequencer(t, logmemory.New())
	_, err := seq.Join(ctx, domain.User{ID: "u1"}, "doc")
	require.NoError(t, err)
	_, err = seq.Join(ctx, domain.User{ID: "u2"}, "doc")
	require.NoError(t, err)

	base, err := seq.Submit(ctx, "doc", "m1", 4, 1, encodeOps(t, insert("m1", 0, "abcdefgh")))
	require.NoError(t, err)
	remove := func(member domain.MemberID, position, length int) ops.Spec {
		return ops.RemoveTextSpec{Header: ops.Header{MemberID: member, Timestamp: 1}, Position: position, Length: length}
	}

	head, err := seq.Submit(ctx, "doc", "m2", base, 1, encodeOps(t, remove("m2", 1, 6)))
	require.NoError(t, err)
	dropped, err := seq.Submit(ctx, "doc", "m1", base, 2, encodeOps(t, remove("m1", 2, 2)))
	require.NoError(t, err)
	assert.Equal(t, head, dropped)

	next, err := seq.Submit(ctx, "doc", "m1", head, 3, encodeOps(t, insert("m1", 1, "x")))
	require.NoError(t, err)
	assert.Equal(t, head+1, next)

	state, _, err := seq.State(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "axh", state.Paragraphs[0].Text)
}
