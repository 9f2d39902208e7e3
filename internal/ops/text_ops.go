package ops

import (
	"unicode/utf8"

	"github.com/bnema/odfops/internal/domain"
)

type InsertTextSpec struct {
	Header
	Position   int    `json:"position"`
	Text       string `json:"text"`
	MoveCursor bool   `json:"moveCursor,omitempty"`
}

func (s InsertTextSpec) kind() domain.OpType { return domain.OpInsertText }

func (s InsertTextSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s InsertTextSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if s.Position < 0 {
		return nil, malformed(s.OpType, "position must not be negative")
	}
	if s.Text == "" {
		return nil, malformed(s.OpType, "text is required")
	}

	return s, nil
}

func (s InsertTextSpec) build() Operation {
	return &InsertText{meta: newMeta(s.Header, true), spec: s}
}

type InsertText struct {
	meta
	spec InsertTextSpec
}

func (o *InsertText) Spec() Spec { return o.spec }

func (o *InsertText) Execute(doc Document) bool {
	change, ok := doc.InsertText(o.spec.Position, o.spec.Text)
	if !ok {
		return false
	}

	if o.spec.MoveCursor {
		placeCursor(doc, o.MemberID(), o.spec.Position+utf8.RuneCountInString(o.spec.Text))
	}
	doc.Emit(o.event(domain.EventParagraphChanged, change))
	return true
}

type RemoveTextSpec struct {
	Header
	Position int    `json:"position"`
	Length   int    `json:"length"`
	Text     string `json:"text,omitempty"`
}

func (s RemoveTextSpec) kind() domain.OpType { return domain.OpRemoveText }

func (s RemoveTextSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s RemoveTextSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if s.Position < 0 {
		return nil, malformed(s.OpType, "position must not be negative")
	}
	if s.Length == 0 {
		return nil, malformed(s.OpType, "length must not be zero")
	}

	return s, nil
}

func (s RemoveTextSpec) build() Operation {
	return &RemoveText{meta: newMeta(s.Header, true), spec: s}
}

// RemoveText deletes Length steps after Position, or before it when Length is
// negative. The range must stay inside one paragraph.
type RemoveText struct {
	meta
	spec RemoveTextSpec
}

func (o *RemoveText) Spec() Spec { return o.spec }

func (o *RemoveText) Execute(doc Document) bool {
	change, ok := doc.RemoveText(o.spec.Position, o.spec.Length)
	if !ok {
		return false
	}

	doc.Emit(o.event(domain.EventParagraphChanged, change))
	return true
}

type SplitParagraphSpec struct {
	Header
	Position   int  `json:"position"`
	MoveCursor bool `json:"moveCursor,omitempty"`
}

func (s SplitParagraphSpec) kind() domain.OpType { return domain.OpSplitParagraph }

func (s SplitParagraphSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s SplitParagraphSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if s.Position < 0 {
		return nil, malformed(s.OpType, "position must not be negative")
	}

	return s, nil
}

func (s SplitParagraphSpec) build() Operation {
	return &SplitParagraph{meta: newMeta(s.Header, true), spec: s}
}

type SplitParagraph struct {
	meta
	spec SplitParagraphSpec
}

func (o *SplitParagraph) Spec() Spec { return o.spec }

func (o *SplitParagraph) Execute(doc Document) bool {
	if _, ok := doc.SplitParagraph(o.spec.Position); !ok {
		return false
	}

	if o.spec.MoveCursor {
		placeCursor(doc, o.MemberID(), o.spec.Position+1)
	}
	doc.Emit(o.event(domain.EventStepsInserted, domain.StepsChange{Position: o.spec.Position, Length: 1}))
	return true
}

type SetParagraphStyleSpec struct {
	Header
	Position  int    `json:"position"`
	StyleName string `json:"styleName"`
}

func (s SetParagraphStyleSpec) kind() domain.OpType { return domain.OpSetParagraphStyle }

func (s SetParagraphStyleSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s SetParagraphStyleSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if s.Position < 0 {
		return nil, malformed(s.OpType, "position must not be negative")
	}

	return s, nil
}

func (s SetParagraphStyleSpec) build() Operation {
	return &SetParagraphStyle{meta: newMeta(s.Header, true), spec: s}
}

// SetParagraphStyle assigns a paragraph style to the paragraph containing
// Position. An empty StyleName clears it.
type SetParagraphStyle struct {
	meta
	spec SetParagraphStyleSpec
}

func (o *SetParagraphStyle) Spec() Spec { return o.spec }

func (o *SetParagraphStyle) Execute(doc Document) bool {
	if o.spec.StyleName != "" {
		if _, ok := doc.GetStyle(o.spec.StyleName, domain.StyleFamilyParagraph); !ok {
			return false
		}
	}

	change, ok := doc.SetParagraphStyle(o.spec.Position, o.spec.StyleName)
	if !ok {
		return false
	}

	doc.Emit(o.event(domain.EventParagraphChanged, change))
	return true
}

func placeCursor(doc Document, id domain.MemberID, position int) {
	cursor, ok := doc.GetCursor(id)
	if !ok {
		return
	}

	cursor.Position = position
	cursor.Length = 0
	doc.UpdateCursor(cursor)
}
