package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
)

var _ ops.Document = (*Document)(nil)

type paragraph struct {
	style string
	text  []rune
}

// Document is an in-memory document replica. Text is a list of paragraphs
// addressed by steps: a paragraph of n characters spans n+1 steps, the last
// one being its end.
type Document struct {
	mu         sync.RWMutex
	emitter    ops.Emitter
	members    map[domain.MemberID]domain.Member
	cursors    map[domain.MemberID]domain.Cursor
	blobs      map[string]domain.Blob
	styles     map[domain.StyleKey]domain.Style
	paragraphs []paragraph
	metadata   map[string]string
}

type Option func(*Document)

func WithEmitter(emitter ops.Emitter) Option {
	return func(d *Document) {
		d.emitter = emitter
	}
}

func New(opts ...Option) *Document {
	d := &Document{
		members:    map[domain.MemberID]domain.Member{},
		cursors:    map[domain.MemberID]domain.Cursor{},
		blobs:      map[string]domain.Blob{},
		styles:     map[domain.StyleKey]domain.Style{},
		paragraphs: []paragraph{{}},
		metadata:   map[string]string{},
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Document) Emit(event domain.Event) {
	if d.emitter == nil {
		return
	}
	d.emitter.Emit(event)
}

func (d *Document) GetMember(id domain.MemberID) (domain.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	member, ok := d.members[id]
	return member, ok
}

func (d *Document) Members() []domain.Member {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.sortedMembers()
}

func (d *Document) AddMember(member domain.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.members[member.ID] = member
}

func (d *Document) UpdateMember(member domain.Member) {
	d.AddMember(member)
}

func (d *Document) RemoveMember(id domain.MemberID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.members, id)
}

func (d *Document) GetCursor(id domain.MemberID) (domain.Cursor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cursor, ok := d.cursors[id]
	return cursor, ok
}

func (d *Document) Cursors() []domain.Cursor {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.sortedCursors()
}

func (d *Document) AddCursor(cursor domain.Cursor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cursors[cursor.MemberID] = cursor
}

func (d *Document) UpdateCursor(cursor domain.Cursor) {
	d.AddCursor(cursor)
}

func (d *Document) RemoveCursor(id domain.MemberID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.cursors, id)
}

func (d *Document) GetBlob(filename string) (domain.Blob, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blob, ok := d.blobs[filename]
	return blob, ok
}

func (d *Document) SetBlob(blob domain.Blob) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.blobs[blob.Filename] = blob
}

func (d *Document) RemoveBlob(filename string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.blobs, filename)
}

func (d *Document) GetStyle(name string, family domain.StyleFamily) (domain.Style, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	style, ok := d.styles[domain.StyleKey{Name: name, Family: family}]
	return style, ok
}

func (d *Document) AddStyle(style domain.Style) {
	d.mu.Lock()
	defer d.mu.Unlock()

	style.Properties = cloneMap(style.Properties)
	d.styles[style.Key()] = style
}

func (d *Document) RemoveStyle(name string, family domain.StyleFamily) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.styles, domain.StyleKey{Name: name, Family: family})
}

func (d *Document) StepCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.stepCount()
}

func (d *Document) InsertText(position int, text string) (domain.ParagraphChange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	index, offset, ok := d.locate(position)
	if !ok {
		return domain.ParagraphChange{}, false
	}

	inserted := []rune(text)
	p := &d.paragraphs[index]
	next := make([]rune, 0, len(p.text)+len(inserted))
	next = append(next, p.text[:offset]...)
	next = append(next, inserted...)
	next = append(next, p.text[offset:]...)
	p.text = next

	d.shiftCursors(func(step int) int {
		if step > position {
			return step + len(inserted)
		}
		return step
	})

	return domain.ParagraphChange{Paragraph: index, Position: position}, true
}

func (d *Document) RemoveText(position, length int) (domain.ParagraphChange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lo, hi := position, position+length
	if length < 0 {
		lo, hi = position+length, position
	}
	if lo < 0 || lo == hi {
		return domain.ParagraphChange{}, false
	}

	index, offset, ok := d.locate(lo)
	if !ok {
		return domain.ParagraphChange{}, false
	}
	p := &d.paragraphs[index]
	count := hi - lo
	if offset+count > len(p.text) {
		return domain.ParagraphChange{}, false
	}

	next := make([]rune, 0, len(p.text)-count)
	next = append(next, p.text[:offset]...)
	next = append(next, p.text[offset+count:]...)
	p.text = next

	d.shiftCursors(func(step int) int {
		switch {
		case step >= hi:
			return step - count
		case step > lo:
			return lo
		default:
			return step
		}
	})

	return domain.ParagraphChange{Paragraph: index, Position: lo}, true
}

func (d *Document) SplitParagraph(position int) (domain.ParagraphChange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	index, offset, ok := d.locate(position)
	if !ok {
		return domain.ParagraphChange{}, false
	}

	current := d.paragraphs[index]
	head := paragraph{style: current.style, text: append([]rune(nil), current.text[:offset]...)}
	tail := paragraph{style: current.style, text: append([]rune(nil), current.text[offset:]...)}

	paragraphs := make([]paragraph, 0, len(d.paragraphs)+1)
	paragraphs = append(paragraphs, d.paragraphs[:index]...)
	paragraphs = append(paragraphs, head, tail)
	paragraphs = append(paragraphs, d.paragraphs[index+1:]...)
	d.paragraphs = paragraphs

	d.shiftCursors(func(step int) int {
		if step > position {
			return step + 1
		}
		return step
	})

	return domain.ParagraphChange{Paragraph: index, Position: position}, true
}

func (d *Document) SetParagraphStyle(position int, styleName string) (domain.ParagraphChange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	index, offset, ok := d.locate(position)
	if !ok {
		return domain.ParagraphChange{}, false
	}

	d.paragraphs[index].style = styleName
	return domain.ParagraphChange{Paragraph: index, Position: position - offset}, true
}

func (d *Document) UpdateMetadata(set map[string]string, removed []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, key := range removed {
		delete(d.metadata, key)
	}
	for key, value := range set {
		d.metadata[key] = value
	}
}

func (d *Document) Snapshot() domain.DocumentState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	styles := make([]domain.Style, 0, len(d.styles))
	for _, style := range d.styles {
		style.Properties = cloneMap(style.Properties)
		styles = append(styles, style)
	}
	sort.Slice(styles, func(i, j int) bool {
		if styles[i].Family != styles[j].Family {
			return styles[i].Family < styles[j].Family
		}
		return styles[i].Name < styles[j].Name
	})

	blobs := make([]domain.Blob, 0, len(d.blobs))
	for _, blob := range d.blobs {
		blobs = append(blobs, blob)
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Filename < blobs[j].Filename })

	paragraphs := make([]domain.Paragraph, 0, len(d.paragraphs))
	for _, p := range d.paragraphs {
		paragraphs = append(paragraphs, domain.Paragraph{Style: p.style, Text: string(p.text)})
	}

	return domain.DocumentState{
		Members:    d.sortedMembers(),
		Cursors:    d.sortedCursors(),
		Styles:     styles,
		Blobs:      blobs,
		Paragraphs: paragraphs,
		Metadata:   cloneMap(d.metadata),
	}
}

// Digest fingerprints the snapshot.
func (d *Document) Digest() (string, error) {
	return Digest(d.Snapshot())
}

func Digest(state domain.DocumentState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode document state: %w", err)
	}

	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

func (d *Document) Text() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lines := make([]string, 0, len(d.paragraphs))
	for _, p := range d.paragraphs {
		lines = append(lines, string(p.text))
	}

	return lines
}

func (d *Document) locate(position int) (int, int, bool) {
	if position < 0 {
		return 0, 0, false
	}

	remaining := position
	for i, p := range d.paragraphs {
		if remaining <= len(p.text) {
			return i, remaining, true
		}
		remaining -= len(p.text) + 1
	}

	return 0, 0, false
}

func (d *Document) stepCount() int {
	steps := 0
	for _, p := range d.paragraphs {
		steps += len(p.text) + 1
	}

	return steps
}

func (d *Document) shiftCursors(move func(step int) int) {
	for id, cursor := range d.cursors {
		start := move(cursor.Position)
		end := move(cursor.Position + cursor.Length)
		cursor.Position = start
		cursor.Length = end - start
		d.cursors[id] = cursor
	}
}

func (d *Document) sortedMembers() []domain.Member {
	members := make([]domain.Member, 0, len(d.members))
	for _, member := range d.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	return members
}

func (d *Document) sortedCursors() []domain.Cursor {
	cursors := make([]domain.Cursor, 0, len(d.cursors))
	for _, cursor := range d.cursors {
		cursors = append(cursors, cursor)
	}
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].MemberID < cursors[j].MemberID })

	return cursors
}

func cloneMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}

	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}

	return out
}
