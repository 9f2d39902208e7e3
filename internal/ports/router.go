package ports

import (
	"context"

	"github.com/bnema/odfops/internal/ops"
)

type RouterState string

const (
	RouterIdle       RouterState = "idle"
	RouterConnecting RouterState = "connecting"
	RouterActive     RouterState = "active"
	RouterClosed     RouterState = "closed"
	RouterError      RouterState = "error"
)

type RouterEventKind string

const (
	RouterEventBatchStart            RouterEventKind = "router/batchstart"
	RouterEventBatchEnd              RouterEventKind = "router/batchend"
	RouterEventStateChanged          RouterEventKind = "router/statechanged"
	RouterEventUnsyncedChanged       RouterEventKind = "router/hasLocalUnsyncedOps"
	RouterEventHostConnectionChanged RouterEventKind = "router/hasSessionHostConnection"
	RouterEventError                 RouterEventKind = "router/error"
	RouterEventFallback              RouterEventKind = "router/fallback"
)

// RouterEvent reports router progress.
type RouterEvent struct {
	Kind  RouterEventKind
	State RouterState
	Flag  bool
	Err   error
}

type PlaybackFunc func(op ops.Operation) bool

// OperationRouter orders operations and hands them to the playback function
// of every participant, the originator included. Push never blocks on I/O.
type OperationRouter interface {
	SetOperationFactory(factory *ops.Factory)
	SetPlaybackFunction(fn PlaybackFunc)
	Push(operations []ops.Operation) error
	Close(ctx context.Context) error
	Subscribe(fn func(RouterEvent)) (unsubscribe func())
	HasLocalUnsyncedOps() bool
	HasSessionHostConnection() bool
	State() RouterState
}

// UnsyncedTaker removes the operations the host has not acknowledged yet.
type UnsyncedTaker interface {
	TakeUnsynced() []ops.Operation
}
