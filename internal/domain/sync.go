package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type SyncResult string

const (
	SyncAdded  SyncResult = "added"
	SyncNewOps SyncResult = "new_ops"
	SyncError  SyncResult = "error"
)

type SyncErrorCode string

const (
	SyncErrNoSession SyncErrorCode = "ENOSESSION"
	SyncErrNoMember  SyncErrorCode = "ENOMEMBER"
	SyncErrBadOp     SyncErrorCode = "EBADOP"
)

func (c SyncErrorCode) Err() error {
	switch c {
	case SyncErrNoSession:
		return ErrSessionNotFound
	case SyncErrNoMember:
		return ErrNotSessionMember
	case SyncErrBadOp:
		return ErrMalformedOperation
	default:
		return fmt.Errorf("sync error %q", string(c))
	}
}

func SyncErrorCodeFor(err error) (SyncErrorCode, bool) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return SyncErrNoSession, true
	case errors.Is(err, ErrNotSessionMember):
		return SyncErrNoMember, true
	case errors.Is(err, ErrMalformedOperation), errors.Is(err, ErrUnknownOperation):
		return SyncErrBadOp, true
	default:
		return "", false
	}
}

// SequencedOp is an operation accepted by the session host. Seq is the
// position in the session's total order, ClientSeq the originator's own
// counter for the operation.
type SequencedOp struct {
	Seq       int64           `json:"seq"`
	MemberID  MemberID        `json:"memberid"`
	ClientSeq int64           `json:"client_seq"`
	Op        json.RawMessage `json:"op"`
}

// SyncRequest uploads operations written against BaseSeq and asks for
// everything sequenced after SeqHead.
type SyncRequest struct {
	SessionID      SessionID         `json:"es_id"`
	MemberID       MemberID          `json:"member_id"`
	SeqHead        int64             `json:"seq_head"`
	BaseSeq        int64             `json:"base_seq,omitempty"`
	FirstClientSeq int64             `json:"first_client_seq,omitempty"`
	Ops            []json.RawMessage `json:"client_ops,omitempty"`
}

type SyncResponse struct {
	Result  SyncResult    `json:"result"`
	HeadSeq int64         `json:"head_seq"`
	Ops     []SequencedOp `json:"ops,omitempty"`
	Error   SyncErrorCode `json:"error,omitempty"`
}
