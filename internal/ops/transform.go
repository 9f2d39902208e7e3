package ops

import (
	"fmt"
	"maps"
	"unicode/utf8"

	"github.com/bnema/odfops/internal/domain"
)

// pairTransform rewrites x and y so that each applies after the other. On
// a position tie the op with xWins keeps its place.
type pairTransform func(x, y Spec, xWins bool) (xs, ys []Spec)

var transforms = map[[2]domain.OpType]pairTransform{
	{domain.OpInsertText, domain.OpInsertText}:            transformInsertInsert,
	{domain.OpInsertText, domain.OpRemoveText}:            transformInsertRemove,
	{domain.OpInsertText, domain.OpSplitParagraph}:        transformInsertSplit,
	{domain.OpInsertText, domain.OpMoveCursor}:            transformInsertMoveCursor,
	{domain.OpInsertText, domain.OpSetParagraphStyle}:     transformInsertSetStyle,
	{domain.OpRemoveText, domain.OpRemoveText}:            transformRemoveRemove,
	{domain.OpRemoveText, domain.OpSplitParagraph}:        transformRemoveSplit,
	{domain.OpRemoveText, domain.OpMoveCursor}:            transformRemoveMoveCursor,
	{domain.OpRemoveText, domain.OpSetParagraphStyle}:     transformRemoveSetStyle,
	{domain.OpSplitParagraph, domain.OpSplitParagraph}:    transformSplitSplit,
	{domain.OpSplitParagraph, domain.OpMoveCursor}:        transformSplitMoveCursor,
	{domain.OpSplitParagraph, domain.OpSetParagraphStyle}: transformSplitSetStyle,
	{domain.OpMoveCursor, domain.OpRemoveCursor}:          transformMoveRemoveCursor,
	{domain.OpRemoveCursor, domain.OpRemoveCursor}:        transformRemoveCursorRemoveCursor,
	{domain.OpAddStyle, domain.OpRemoveStyle}:             transformAddStyleRemoveStyle,
	{domain.OpRemoveStyle, domain.OpRemoveStyle}:          transformRemoveStyleRemoveStyle,
	{domain.OpRemoveStyle, domain.OpSetParagraphStyle}:    transformRemoveStyleSetStyle,
}

// Transform rewrites incoming so it applies after concurrent. The result
// holds what each incoming operation became, possibly nothing. On a
// position tie the concurrent operation keeps its place.
func (f *Factory) Transform(incoming, concurrent []Operation) ([][]Operation, error) {
	bs := specsOf(concurrent)
	out := make([][]Operation, len(incoming))

	for i, op := range incoming {
		as := one(op.Spec())
		var carried []Spec
		for _, b := range bs {
			var moved []Spec
			as, moved = transformListAgainst(as, b)
			carried = append(carried, moved...)
		}
		bs = carried

		for _, spec := range as {
			created, err := f.Create(spec)
			if err != nil {
				return nil, fmt.Errorf("transform %s: %w", spec.kind(), err)
			}
			out[i] = append(out[i], created)
		}
	}

	return out, nil
}

func transformListAgainst(as []Spec, b Spec) ([]Spec, []Spec) {
	var out, bs []Spec

	for len(as) > 0 {
		xs, ys := transformPair(as[0], b, false)
		as = as[1:]
		out = append(out, xs...)

		if len(ys) == 0 {
			return append(out, as...), bs
		}
		for len(ys) > 1 {
			var carried []Spec
			as, carried = transformListAgainst(as, ys[0])
			bs = append(bs, carried...)
			ys = ys[1:]
		}
		b = ys[0]
	}

	return out, append(bs, b)
}

func transformPair(a, b Spec, aWins bool) ([]Spec, []Spec) {
	if fn, ok := transforms[[2]domain.OpType{a.kind(), b.kind()}]; ok {
		return fn(a, b, aWins)
	}
	if fn, ok := transforms[[2]domain.OpType{b.kind(), a.kind()}]; ok {
		bs, as := fn(b, a, !aWins)
		return as, bs
	}

	return []Spec{a}, []Spec{b}
}

func specsOf(operations []Operation) []Spec {
	specs := make([]Spec, 0, len(operations))
	for _, op := range operations {
		specs = append(specs, op.Spec())
	}
	return specs
}

func one(s Spec) []Spec { return []Spec{s} }

func runes(s string) int { return utf8.RuneCountInString(s) }

func forward(r RemoveTextSpec) RemoveTextSpec {
	if r.Length < 0 {
		r.Position += r.Length
		r.Length = -r.Length
	}
	return r
}

func shiftCursor(m MoveCursorSpec, fn func(*MoveCursorSpec)) MoveCursorSpec {
	backward := m.Length < 0
	if backward {
		m.Position += m.Length
		m.Length = -m.Length
	}
	fn(&m)
	if backward {
		m.Position += m.Length
		m.Length = -m.Length
	}
	return m
}

func transformInsertInsert(x, y Spec, xWins bool) ([]Spec, []Spec) {
	a, b := x.(InsertTextSpec), y.(InsertTextSpec)
	switch {
	case a.Position < b.Position, a.Position == b.Position && xWins:
		b.Position += runes(a.Text)
	default:
		a.Position += runes(b.Text)
	}
	return one(a), one(b)
}

func transformInsertRemove(x, y Spec, _ bool) ([]Spec, []Spec) {
	ins, rem := x.(InsertTextSpec), forward(y.(RemoveTextSpec))
	rem.Text = ""
	end := rem.Position + rem.Length

	switch {
	case end <= ins.Position:
		ins.Position -= rem.Length
		return one(ins), one(rem)
	case ins.Position <= rem.Position:
		rem.Position += runes(ins.Text)
		return one(ins), one(rem)
	}

	after := rem
	after.Position = ins.Position + runes(ins.Text)
	after.Length = end - ins.Position
	rem.Length = ins.Position - rem.Position
	ins.Position = rem.Position
	return one(ins), []Spec{after, rem}
}

func transformInsertSplit(x, y Spec, xWins bool) ([]Spec, []Spec) {
	ins, split := x.(InsertTextSpec), y.(SplitParagraphSpec)
	switch {
	case ins.Position < split.Position, ins.Position == split.Position && xWins:
		split.Position += runes(ins.Text)
	default:
		ins.Position++
	}
	return one(ins), one(split)
}

func transformInsertMoveCursor(x, y Spec, _ bool) ([]Spec, []Spec) {
	ins := x.(InsertTextSpec)
	moved := shiftCursor(y.(MoveCursorSpec), func(m *MoveCursorSpec) {
		switch {
		case ins.Position < m.Position:
			m.Position += runes(ins.Text)
		case ins.Position < m.Position+m.Length:
			m.Length += runes(ins.Text)
		}
	})
	return one(ins), one(moved)
}

func transformInsertSetStyle(x, y Spec, _ bool) ([]Spec, []Spec) {
	ins, set := x.(InsertTextSpec), y.(SetParagraphStyleSpec)
	if ins.Position < set.Position {
		set.Position += runes(ins.Text)
	}
	return one(ins), one(set)
}

func transformRemoveRemove(x, y Spec, _ bool) ([]Spec, []Spec) {
	a, b := forward(x.(RemoveTextSpec)), forward(y.(RemoveTextSpec))
	a.Text, b.Text = "", ""
	aEnd, bEnd := a.Position+a.Length, b.Position+b.Length

	switch {
	case bEnd <= a.Position:
		a.Position -= b.Length
		return one(a), one(b)
	case aEnd <= b.Position:
		b.Position -= a.Length
		return one(a), one(b)
	}

	// Overlap: each keeps only what the other did not remove.
	start := min(a.Position, b.Position)
	keep := func(r RemoveTextSpec, end, otherStart, otherEnd int) []Spec {
		before := max(0, min(end, otherStart)-r.Position)
		after := max(0, end-max(r.Position, otherEnd))
		if before+after == 0 {
			return nil
		}
		r.Position = min(r.Position, start)
		r.Length = before + after
		return one(r)
	}
	return keep(a, aEnd, b.Position, bEnd), keep(b, bEnd, a.Position, aEnd)
}

func transformRemoveSplit(x, y Spec, _ bool) ([]Spec, []Spec) {
	rem, split := forward(x.(RemoveTextSpec)), y.(SplitParagraphSpec)
	rem.Text = ""
	end := rem.Position + rem.Length
	removed := []Spec{rem}

	switch {
	case split.Position <= rem.Position:
		rem.Position++
		removed = one(rem)
	case split.Position < end:
		after := rem
		after.Position = split.Position + 1
		after.Length = end - split.Position
		rem.Length = split.Position - rem.Position
		removed = []Spec{after, rem}
	}

	switch {
	case end <= split.Position:
		split.Position -= rem.Length
	case rem.Position < split.Position:
		split.Position = rem.Position
	}

	return removed, one(split)
}

func transformRemoveMoveCursor(x, y Spec, _ bool) ([]Spec, []Spec) {
	rem := forward(x.(RemoveTextSpec))
	end := rem.Position + rem.Length
	moved := shiftCursor(y.(MoveCursorSpec), func(m *MoveCursorSpec) {
		mEnd := m.Position + m.Length
		switch {
		case end <= m.Position:
			m.Position -= rem.Length
		case rem.Position < mEnd:
			if m.Position < rem.Position {
				m.Length -= min(end, mEnd) - rem.Position
			} else {
				m.Position = rem.Position
				m.Length = max(0, mEnd-end)
			}
		}
	})
	return one(x), one(moved)
}

func transformRemoveSetStyle(x, y Spec, _ bool) ([]Spec, []Spec) {
	rem, set := forward(x.(RemoveTextSpec)), y.(SetParagraphStyleSpec)
	end := rem.Position + rem.Length
	switch {
	case end <= set.Position:
		set.Position -= rem.Length
	case rem.Position < set.Position:
		set.Position = rem.Position
	}
	return one(x), one(set)
}

func transformSplitSplit(x, y Spec, xWins bool) ([]Spec, []Spec) {
	a, b := x.(SplitParagraphSpec), y.(SplitParagraphSpec)
	switch {
	case a.Position < b.Position, a.Position == b.Position && xWins:
		b.Position++
	default:
		a.Position++
	}
	return one(a), one(b)
}

func transformSplitMoveCursor(x, y Spec, _ bool) ([]Spec, []Spec) {
	split := x.(SplitParagraphSpec)
	moved := shiftCursor(y.(MoveCursorSpec), func(m *MoveCursorSpec) {
		switch {
		case split.Position < m.Position:
			m.Position++
		case split.Position < m.Position+m.Length:
			m.Length++
		}
	})
	return one(split), one(moved)
}

func transformSplitSetStyle(x, y Spec, _ bool) ([]Spec, []Spec) {
	split, set := x.(SplitParagraphSpec), y.(SetParagraphStyleSpec)
	if split.Position < set.Position {
		set.Position++
	}
	return one(split), one(set)
}

func transformMoveRemoveCursor(x, y Spec, _ bool) ([]Spec, []Spec) {
	if x.(MoveCursorSpec).MemberID == y.(RemoveCursorSpec).MemberID {
		return nil, one(y)
	}
	return one(x), one(y)
}

func transformRemoveCursorRemoveCursor(x, y Spec, _ bool) ([]Spec, []Spec) {
	if x.(RemoveCursorSpec).MemberID == y.(RemoveCursorSpec).MemberID {
		return nil, nil
	}
	return one(x), one(y)
}

var styleReferences = []string{"style:parent-style-name", "style:next-style-name"}

func transformAddStyleRemoveStyle(x, y Spec, _ bool) ([]Spec, []Spec) {
	add, rem := x.(AddStyleSpec), y.(RemoveStyleSpec)
	if add.StyleFamily != rem.StyleFamily || len(add.SetProperties) == 0 {
		return one(add), one(rem)
	}

	props := maps.Clone(add.SetProperties)
	for _, key := range styleReferences {
		if props[key] == rem.StyleName {
			delete(props, key)
		}
	}
	add.SetProperties = props
	return one(add), one(rem)
}

func transformRemoveStyleRemoveStyle(x, y Spec, _ bool) ([]Spec, []Spec) {
	a, b := x.(RemoveStyleSpec), y.(RemoveStyleSpec)
	if a.StyleName == b.StyleName && a.StyleFamily == b.StyleFamily {
		return nil, nil
	}
	return one(a), one(b)
}

func transformRemoveStyleSetStyle(x, y Spec, _ bool) ([]Spec, []Spec) {
	rem, set := x.(RemoveStyleSpec), y.(SetParagraphStyleSpec)
	if rem.StyleFamily != domain.StyleFamilyParagraph || rem.StyleName != set.StyleName {
		return one(rem), one(set)
	}

	cleared := set
	cleared.Header = rem.Header
	cleared.OpType = domain.OpSetParagraphStyle
	cleared.StyleName = ""
	set.StyleName = ""
	return []Spec{cleared, rem}, one(set)
}
