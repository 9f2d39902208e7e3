// Package hostsync holds the replica state shared by host-synced routers.
package hostsync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/events"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

// Batch is a run of unsynced operations written against the same host
// sequence head.
type Batch struct {
	FirstClientSeq int64
	BaseSeq        int64
	Ops            []json.RawMessage
}

type Core struct {
	SessionID domain.SessionID
	MemberID  domain.MemberID
	Logger    *slog.Logger

	mu            sync.Mutex
	factory       *ops.Factory
	playback      ports.PlaybackFunc
	state         ports.RouterState
	err           error
	unsynced      []ops.Operation
	bases         []int64
	nextClientSeq int64
	seqHead       int64
	hostConnected bool
	closing       bool
	events        events.Bus[ports.RouterEvent]
}

func NewCore(sessionID domain.SessionID, memberID domain.MemberID, seqHead int64, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Core{
		SessionID:     sessionID,
		MemberID:      memberID,
		Logger:        logger,
		factory:       ops.NewFactory(),
		state:         ports.RouterIdle,
		nextClientSeq: 1,
		seqHead:       seqHead,
	}
}

func (c *Core) SetOperationFactory(factory *ops.Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if factory != nil {
		c.factory = factory
	}
}

func (c *Core) InstallPlayback(fn ports.PlaybackFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	first := c.playback == nil && fn != nil && !c.closing
	c.playback = fn
	return first
}

func (c *Core) Enqueue(operations []ops.Operation) error {
	c.mu.Lock()
	switch {
	case c.closing || c.state == ports.RouterClosed:
		c.mu.Unlock()
		return domain.ErrRouterClosed
	case c.state == ports.RouterError:
		c.mu.Unlock()
		return domain.ErrRouterFailed
	}
	wasEmpty := len(c.unsynced) == 0
	c.unsynced = append(c.unsynced, operations...)
	for range operations {
		c.bases = append(c.bases, c.seqHead)
	}
	nowPending := len(c.unsynced) > 0
	c.mu.Unlock()

	if wasEmpty && nowPending {
		c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventUnsyncedChanged, Flag: true})
	}
	return nil
}

// Pending returns the leading run of unsynced operations sharing one base.
func (c *Core) Pending(offset int) (Batch, error) {
	c.mu.Lock()
	if offset > len(c.unsynced) {
		offset = len(c.unsynced)
	}
	batch := Batch{FirstClientSeq: c.nextClientSeq + int64(offset), BaseSeq: c.seqHead}
	end := offset
	if offset < len(c.unsynced) {
		batch.BaseSeq = c.bases[offset]
		for end < len(c.unsynced) && c.bases[end] == batch.BaseSeq {
			end++
		}
	}
	pending := append([]ops.Operation(nil), c.unsynced[offset:end]...)
	c.mu.Unlock()

	if len(pending) == 0 {
		return batch, nil
	}

	encoded, err := ops.EncodeBatch(pending)
	if err != nil {
		return Batch{}, err
	}
	batch.Ops = encoded

	return batch, nil
}

func (c *Core) Acknowledge(count int) {
	if count <= 0 {
		return
	}

	c.mu.Lock()
	if count > len(c.unsynced) {
		count = len(c.unsynced)
	}
	c.unsynced = c.unsynced[count:]
	c.bases = c.bases[count:]
	c.nextClientSeq += int64(count)
	drained := count > 0 && len(c.unsynced) == 0
	c.mu.Unlock()

	if drained {
		c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventUnsyncedChanged, Flag: false})
	}
}

func (c *Core) AcknowledgeThrough(clientSeq int64) int {
	c.mu.Lock()
	count := int(clientSeq - c.nextClientSeq + 1)
	c.mu.Unlock()

	if count <= 0 {
		return 0
	}
	c.Acknowledge(count)
	return count
}

// Apply plays back unseen host operations. A batch that fails to decode is
// rejected as a whole.
func (c *Core) Apply(entries []domain.SequencedOp) error {
	c.mu.Lock()
	head := c.seqHead
	factory := c.factory
	playback := c.playback
	c.mu.Unlock()

	fresh := make([]domain.SequencedOp, 0, len(entries))
	raw := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		if entry.Seq <= head {
			continue
		}
		fresh = append(fresh, entry)
		raw = append(raw, entry.Op)
	}
	if len(fresh) == 0 || playback == nil {
		return nil
	}

	operations, err := factory.DecodeBatch(raw)
	if err != nil {
		return fmt.Errorf("received operations: %w", err)
	}

	c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventBatchStart})
	defer c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventBatchEnd})

	for i, op := range operations {
		if c.Closing() {
			return nil
		}

		if !playback(op) {
			c.Logger.Debug("operation rejected by guard", "optype", op.Type(), "memberid", op.MemberID(), "seq", fresh[i].Seq)
		}

		c.mu.Lock()
		c.seqHead = fresh[i].Seq
		c.mu.Unlock()
	}

	return nil
}

// BeginClose reports whether closing began now and whether the router had failed.
func (c *Core) BeginClose() (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return false, c.state == ports.RouterError
	}
	c.closing = true
	return true, c.state == ports.RouterError
}

func (c *Core) Closing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closing
}

func (c *Core) Fail(err error) {
	c.Logger.Error("operation router stopped", "session", c.SessionID, "error", err)
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.SetHostConnection(false)
	c.SetState(ports.RouterError, err)
}

func (c *Core) Warn(err error) {
	c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventError, Err: err})
}

func (c *Core) SetState(state ports.RouterState, err error) {
	c.mu.Lock()
	if c.state == state || c.state == ports.RouterClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	if err != nil {
		c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventError, State: state, Err: err})
	}
	c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventStateChanged, State: state})
}

func (c *Core) SetHostConnection(connected bool) {
	c.mu.Lock()
	changed := c.hostConnected != connected
	c.hostConnected = connected
	c.mu.Unlock()

	if changed {
		c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventHostConnectionChanged, Flag: connected})
	}
}

func (c *Core) Subscribe(fn func(ports.RouterEvent)) func() {
	return c.events.Subscribe(fn)
}

func (c *Core) HasLocalUnsyncedOps() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.unsynced) > 0
}

func (c *Core) HasSessionHostConnection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hostConnected
}

func (c *Core) State() ports.RouterState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Core) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Core) SeqHead() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.seqHead
}

func (c *Core) TakeUnsynced() []ops.Operation {
	c.mu.Lock()
	taken := c.unsynced
	c.unsynced = nil
	c.bases = nil
	c.nextClientSeq += int64(len(taken))
	c.mu.Unlock()

	if len(taken) > 0 {
		c.events.Publish(ports.RouterEvent{Kind: ports.RouterEventUnsyncedChanged, Flag: false})
	}
	return taken
}
