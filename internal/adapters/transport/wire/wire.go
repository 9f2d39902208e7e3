// Package wire defines the JSON messages exchanged between session hosts
// and their clients.
package wire

import (
	"encoding/json"

	"github.com/bnema/odfops/internal/domain"
)

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID domain.UserID `json:"uid"`
	Token  string        `json:"token"`
}

type JoinResponse struct {
	SessionID domain.SessionID `json:"es_id"`
	MemberID  domain.MemberID  `json:"member_id"`
	FullName  string           `json:"full_name"`
	Color     string           `json:"color"`
	ImageURL  string           `json:"image_url"`
	HeadSeq   int64            `json:"head_seq"`
}

func NewJoinResponse(result domain.JoinResult) JoinResponse {
	return JoinResponse{
		SessionID: result.SessionID,
		MemberID:  result.MemberID,
		FullName:  result.Properties.FullName,
		Color:     result.Properties.Color,
		ImageURL:  result.Properties.ImageURL,
		HeadSeq:   result.HeadSeq,
	}
}

func (r JoinResponse) Result() domain.JoinResult {
	return domain.JoinResult{
		SessionID: r.SessionID,
		MemberID:  r.MemberID,
		Properties: domain.MemberProperties{
			FullName: r.FullName,
			Color:    r.Color,
			ImageURL: r.ImageURL,
		},
		HeadSeq: r.HeadSeq,
	}
}

type LeaveRequest struct {
	MemberID domain.MemberID `json:"member_id"`
}

type StateResponse struct {
	SessionID domain.SessionID     `json:"es_id"`
	Head      int64                `json:"head_seq"`
	Digest    string               `json:"digest"`
	State     domain.DocumentState `json:"state"`
}

type SessionsResponse struct {
	Sessions []domain.SessionID `json:"sessions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type FrameType string

const (
	FrameHello  FrameType = "hello"
	FrameSubmit FrameType = "submit"
	FrameOps    FrameType = "ops"
	FrameAck    FrameType = "ack"
	FrameError  FrameType = "error"
)

// Frame is one websocket message of the live protocol.
type Frame struct {
	Type           FrameType            `json:"type"`
	MemberID       domain.MemberID      `json:"member_id,omitempty"`
	SeqHead        int64                `json:"seq_head,omitempty"`
	BaseSeq        int64                `json:"base_seq,omitempty"`
	FirstClientSeq int64                `json:"first_client_seq,omitempty"`
	ClientOps      []json.RawMessage    `json:"client_ops,omitempty"`
	Ops            []domain.SequencedOp `json:"ops,omitempty"`
	HeadSeq        int64                `json:"head_seq,omitempty"`
	Acked          int64                `json:"acked,omitempty"`
	Error          domain.SyncErrorCode `json:"error,omitempty"`
}
