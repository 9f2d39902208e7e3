package domain

type SessionID string

type NetworkStatus string

const (
	NetworkUnavailable NetworkStatus = "unavailable"
	NetworkTimeout     NetworkStatus = "timeout"
	NetworkReady       NetworkStatus = "ready"
)

type LoginResult struct {
	UserID UserID
	Token  string
}

// JoinResult describes a new member. HeadSeq is the session head once the
// member's own join operations are sequenced.
type JoinResult struct {
	SessionID  SessionID
	MemberID   MemberID
	Properties MemberProperties
	HeadSeq    int64
}
