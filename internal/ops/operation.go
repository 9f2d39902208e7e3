package ops

import (
	"fmt"
	"strings"

	"github.com/bnema/odfops/internal/domain"
)

// Operation is one immutable, replayable unit of change.
type Operation interface {
	Type() domain.OpType
	MemberID() domain.MemberID
	Timestamp() int64
	Group() string
	IsEdit() bool
	// Execute applies the operation and reports whether the document changed.
	// A false return is a guard rejection: nothing changed, nothing emitted.
	Execute(doc Document) bool
	Spec() Spec
}

// Header holds the fields every operation spec carries on the wire.
type Header struct {
	OpType    domain.OpType   `json:"optype"`
	MemberID  domain.MemberID `json:"memberid"`
	Timestamp int64           `json:"timestamp"`
	Group     string          `json:"group,omitempty"`
}

func (h Header) SpecHeader() Header {
	return h
}

// Spec is the wire form of an operation. Only the spec types of this package
// implement it.
type Spec interface {
	SpecHeader() Header
	kind() domain.OpType
	withHeader(h Header) Spec
	prepare() (Spec, error)
	build() Operation
}

func (h Header) validate() error {
	if strings.TrimSpace(string(h.MemberID)) == "" {
		return malformed(h.OpType, "memberid is required")
	}
	if h.Timestamp < 0 {
		return malformed(h.OpType, "timestamp must not be negative")
	}

	return nil
}

func malformed(opType domain.OpType, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrMalformedOperation, opType, fmt.Sprintf(format, args...))
}

type meta struct {
	header Header
	edit   bool
}

func newMeta(h Header, edit bool) meta {
	return meta{header: h, edit: edit}
}

func (m meta) Type() domain.OpType {
	return m.header.OpType
}

func (m meta) MemberID() domain.MemberID {
	return m.header.MemberID
}

func (m meta) Timestamp() int64 {
	return m.header.Timestamp
}

func (m meta) Group() string {
	return m.header.Group
}

func (m meta) IsEdit() bool {
	return m.edit
}

func (m meta) event(kind domain.EventKind, payload any) domain.Event {
	return domain.Event{
		Kind:      kind,
		MemberID:  m.header.MemberID,
		Timestamp: m.header.Timestamp,
		Payload:   payload,
	}
}

func emptyToNilStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}

	return in
}

func emptyToNilMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}

	return in
}
