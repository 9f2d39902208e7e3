// Package oplogtest holds the behaviour every ports.OperationLog must show.
package oplogtest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

func entry(seq int64, member domain.MemberID, clientSeq int64) domain.SequencedOp {
	return domain.SequencedOp{
		Seq:       seq,
		MemberID:  member,
		ClientSeq: clientSeq,
		Op:        json.RawMessage(`{"optype":"AddCursor","memberid":"` + string(member) + `","timestamp":1}`),
	}
}

func Run(t *testing.T, newLog func(t *testing.T) ports.OperationLog) {
	t.Run("appends contiguous entries", func(t *testing.T) {
		log := newLog(t)
		ctx := context.Background()

		require.NoError(t, log.Append(ctx, "s1", []domain.SequencedOp{entry(1, "a", 1), entry(2, "b", 0)}))
		require.NoError(t, log.Append(ctx, "s1", []domain.SequencedOp{entry(3, "a", 2)}))
		require.NoError(t, log.Append(ctx, "s2", []domain.SequencedOp{entry(1, "c", 1)}))

		head, err := log.Head(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), head)

		since, err := log.Since(ctx, "s1", 1)
		require.NoError(t, err)
		require.Len(t, since, 2)
		assert.Equal(t, int64(2), since[0].Seq)
		assert.Equal(t, domain.MemberID("b"), since[0].MemberID)
		assert.JSONEq(t, string(entry(3, "a", 2).Op), string(since[1].Op))

		last, err := log.LastClientSeq(ctx, "s1", "a")
		require.NoError(t, err)
		assert.Equal(t, int64(2), last)

		sessions, err := log.Sessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.SessionID{"s1", "s2"}, sessions)
	})

	t.Run("rejects gaps and reused sequence numbers", func(t *testing.T) {
		log := newLog(t)
		ctx := context.Background()

		require.NoError(t, log.Append(ctx, "s1", []domain.SequencedOp{entry(1, "a", 1)}))
		assert.ErrorIs(t, log.Append(ctx, "s1", []domain.SequencedOp{entry(3, "a", 2)}), domain.ErrSequenceConflict)
		assert.ErrorIs(t, log.Append(ctx, "s1", []domain.SequencedOp{entry(2, "a", 2), entry(2, "a", 3)}), domain.ErrSequenceConflict)

		head, err := log.Head(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), head)
	})

	t.Run("unknown session is empty", func(t *testing.T) {
		log := newLog(t)
		ctx := context.Background()

		head, err := log.Head(ctx, "missing")
		require.NoError(t, err)
		assert.Zero(t, head)

		since, err := log.Since(ctx, "missing", 0)
		require.NoError(t, err)
		assert.Empty(t, since)
	})
}
