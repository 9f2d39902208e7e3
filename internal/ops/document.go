package ops

import "github.com/bnema/odfops/internal/domain"

type Emitter interface {
	Emit(event domain.Event)
}

type EmitterFunc func(event domain.Event)

func (f EmitterFunc) Emit(event domain.Event) {
	f(event)
}

type DocumentReader interface {
	GetMember(id domain.MemberID) (domain.Member, bool)
	Members() []domain.Member
	GetCursor(id domain.MemberID) (domain.Cursor, bool)
	Cursors() []domain.Cursor
	GetBlob(filename string) (domain.Blob, bool)
	GetStyle(name string, family domain.StyleFamily) (domain.Style, bool)
	StepCount() int
	Snapshot() domain.DocumentState
}

// Document is the mutable state operations apply to. Mutators do not emit
// events; the executing operation emits exactly one event when it changed
// state. Text mutators report false without changing anything when the
// position is outside the document.
type Document interface {
	DocumentReader

	AddMember(member domain.Member)
	UpdateMember(member domain.Member)
	RemoveMember(id domain.MemberID)

	AddCursor(cursor domain.Cursor)
	UpdateCursor(cursor domain.Cursor)
	RemoveCursor(id domain.MemberID)

	SetBlob(blob domain.Blob)
	RemoveBlob(filename string)

	AddStyle(style domain.Style)
	RemoveStyle(name string, family domain.StyleFamily)

	InsertText(position int, text string) (domain.ParagraphChange, bool)
	RemoveText(position, length int) (domain.ParagraphChange, bool)
	SplitParagraph(position int) (domain.ParagraphChange, bool)
	SetParagraphStyle(position int, styleName string) (domain.ParagraphChange, bool)

	UpdateMetadata(set map[string]string, removed []string)

	Emit(event domain.Event)
}
