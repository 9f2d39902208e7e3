package ops

import "github.com/bnema/odfops/internal/domain"

type AddCursorSpec struct {
	Header
}

func (s AddCursorSpec) kind() domain.OpType { return domain.OpAddCursor }

func (s AddCursorSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s AddCursorSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s AddCursorSpec) build() Operation {
	return &AddCursor{meta: newMeta(s.Header, false), spec: s}
}

type AddCursor struct {
	meta
	spec AddCursorSpec
}

func (o *AddCursor) Spec() Spec { return o.spec }

func (o *AddCursor) Execute(doc Document) bool {
	if _, ok := doc.GetCursor(o.MemberID()); ok {
		return false
	}

	cursor := domain.NewCursor(o.MemberID())
	doc.AddCursor(cursor)
	doc.Emit(o.event(domain.EventCursorAdded, cursor))
	return true
}

type RemoveCursorSpec struct {
	Header
}

func (s RemoveCursorSpec) kind() domain.OpType { return domain.OpRemoveCursor }

func (s RemoveCursorSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s RemoveCursorSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s RemoveCursorSpec) build() Operation {
	return &RemoveCursor{meta: newMeta(s.Header, false), spec: s}
}

type RemoveCursor struct {
	meta
	spec RemoveCursorSpec
}

func (o *RemoveCursor) Spec() Spec { return o.spec }

func (o *RemoveCursor) Execute(doc Document) bool {
	if _, ok := doc.GetCursor(o.MemberID()); !ok {
		return false
	}

	doc.RemoveCursor(o.MemberID())
	doc.Emit(o.event(domain.EventCursorRemoved, o.MemberID()))
	return true
}

type MoveCursorSpec struct {
	Header
	Position      int                  `json:"position"`
	Length        int                  `json:"length"`
	SelectionType domain.SelectionType `json:"selectionType"`
}

func (s MoveCursorSpec) kind() domain.OpType { return domain.OpMoveCursor }

func (s MoveCursorSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s MoveCursorSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if s.Position < 0 {
		return nil, malformed(s.OpType, "position must not be negative")
	}
	if s.SelectionType == "" {
		s.SelectionType = domain.SelectionRange
	}
	if !s.SelectionType.Valid() {
		return nil, malformed(s.OpType, "unsupported selection type %q", s.SelectionType)
	}

	return s, nil
}

func (s MoveCursorSpec) build() Operation {
	return &MoveCursor{meta: newMeta(s.Header, false), spec: s}
}

// MoveCursor places a member's cursor. The position is not clamped to the
// current text: cursors are positional state and replicas only need to agree
// on the value.
type MoveCursor struct {
	meta
	spec MoveCursorSpec
}

func (o *MoveCursor) Spec() Spec { return o.spec }

func (o *MoveCursor) Execute(doc Document) bool {
	cursor, ok := doc.GetCursor(o.MemberID())
	if !ok {
		return false
	}

	cursor.Position = o.spec.Position
	cursor.Length = o.spec.Length
	cursor.SelectionType = o.spec.SelectionType
	doc.UpdateCursor(cursor)
	doc.Emit(o.event(domain.EventCursorMoved, cursor))
	return true
}
