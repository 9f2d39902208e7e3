package ops_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/odfops/internal/adapters/document/memory"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
)

type recorder struct {
	events []domain.Event
}

func (r *recorder) Emit(event domain.Event) {
	r.events = append(r.events, event)
}

func newDocument() (*memory.Document, *recorder) {
	rec := &recorder{}
	return memory.New(memory.WithEmitter(rec)), rec
}

func hdr(member domain.MemberID) ops.Header {
	return ops.Header{MemberID: member, Timestamp: 1700000000000}
}

func mustCreate(t *testing.T, f *ops.Factory, spec ops.Spec) ops.Operation {
	t.Helper()

	op, err := f.Create(spec)
	require.NoError(t, err)
	return op
}

func TestFactoryRoundTripsEveryOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec ops.Spec
	}{
		{name: "add member", spec: ops.AddMemberSpec{Header: hdr("alice"), SetProperties: domain.MemberProperties{FullName: "Alice", Color: "red", Extra: map[string]string{"team": "docs"}}}},
		{name: "add member defaults", spec: ops.AddMemberSpec{Header: hdr("alice")}},
		{name: "update member", spec: ops.UpdateMemberSpec{Header: hdr("alice"), SetProperties: &domain.MemberProperties{Color: "blue"}, RemovedProperties: []string{"team"}}},
		{name: "remove member", spec: ops.RemoveMemberSpec{Header: hdr("alice")}},
		{name: "add cursor", spec: ops.AddCursorSpec{Header: hdr("alice")}},
		{name: "remove cursor", spec: ops.RemoveCursorSpec{Header: hdr("alice")}},
		{name: "move cursor", spec: ops.MoveCursorSpec{Header: hdr("alice"), Position: 3, Length: -2, SelectionType: domain.SelectionRegion}},
		{name: "set blob", spec: ops.SetBlobSpec{Header: hdr("alice"), Filename: "Pictures/a.png", Mimetype: "image/png", Content: "aGVsbG8="}},
		{name: "remove blob", spec: ops.RemoveBlobSpec{Header: hdr("alice"), Filename: "Pictures/a.png"}},
		{name: "add style", spec: ops.AddStyleSpec{Header: hdr("alice"), StyleName: "P1", StyleFamily: domain.StyleFamilyParagraph, IsAutomaticStyle: true, SetProperties: map[string]string{"fo:margin-top": "1cm"}}},
		{name: "remove style", spec: ops.RemoveStyleSpec{Header: hdr("alice"), StyleName: "P1", StyleFamily: domain.StyleFamilyParagraph}},
		{name: "insert text", spec: ops.InsertTextSpec{Header: hdr("alice"), Position: 4, Text: "héllo", MoveCursor: true}},
		{name: "remove text", spec: ops.RemoveTextSpec{Header: hdr("alice"), Position: 4, Length: -3, Text: "llo"}},
		{name: "split paragraph", spec: ops.SplitParagraphSpec{Header: hdr("alice"), Position: 2, MoveCursor: true}},
		{name: "set paragraph style", spec: ops.SetParagraphStyleSpec{Header: hdr("alice"), Position: 0, StyleName: "P1"}},
		{name: "update metadata", spec: ops.UpdateMetadataSpec{Header: hdr("alice"), SetProperties: map[string]string{"dc:title": "Notes"}, RemovedProperties: []string{"dc:subject"}}},
	}

	factory := ops.NewFactory()
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			op := mustCreate(t, factory, tc.spec)

			again, err := factory.Create(op.Spec())
			require.NoError(t, err)
			assert.Equal(t, op.Spec(), again.Spec())

			data, err := ops.Encode(op)
			require.NoError(t, err)
			decoded, err := factory.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, op.Spec(), decoded.Spec())
			assert.Equal(t, op.Type(), decoded.Type())
			assert.Equal(t, op.IsEdit(), decoded.IsEdit())
			assert.Equal(t, domain.MemberID("alice"), decoded.MemberID())
			assert.Equal(t, int64(1700000000000), decoded.Timestamp())
		})
	}
}

func TestFactoryCoversEveryOpType(t *testing.T) {
	t.Parallel()

	assert.Len(t, ops.NewFactory().OpTypes(), 15)
}

func TestFactoryRejectsMalformedSpecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    ops.Spec
		wantErr string
	}{
		{name: "empty memberid", spec: ops.AddCursorSpec{}, wantErr: "memberid is required"},
		{name: "negative timestamp", spec: ops.AddCursorSpec{Header: ops.Header{MemberID: "a", Timestamp: -1}}, wantErr: "timestamp"},
		{name: "negative position", spec: ops.MoveCursorSpec{Header: hdr("a"), Position: -1}, wantErr: "position"},
		{name: "unknown selection type", spec: ops.MoveCursorSpec{Header: hdr("a"), SelectionType: "Lasso"}, wantErr: "selection type"},
		{name: "missing style name", spec: ops.AddStyleSpec{Header: hdr("a"), StyleFamily: domain.StyleFamilyText}, wantErr: "styleName is required"},
		{name: "missing style family", spec: ops.RemoveStyleSpec{Header: hdr("a"), StyleName: "T1"}, wantErr: "styleFamily is required"},
		{name: "missing blob filename", spec: ops.SetBlobSpec{Header: hdr("a")}, wantErr: "filename is required"},
		{name: "empty insert", spec: ops.InsertTextSpec{Header: hdr("a")}, wantErr: "text is required"},
		{name: "zero length removal", spec: ops.RemoveTextSpec{Header: hdr("a"), Position: 1}, wantErr: "length"},
		{name: "empty member update", spec: ops.UpdateMemberSpec{Header: hdr("a")}, wantErr: "setProperties or removedProperties is required"},
		{name: "member update with blank properties", spec: ops.UpdateMemberSpec{Header: hdr("a"), SetProperties: &domain.MemberProperties{}, RemovedProperties: []string{}}, wantErr: "required"},
		{name: "empty metadata update", spec: ops.UpdateMetadataSpec{Header: hdr("a")}, wantErr: "required"},
		{name: "editor maintained metadata", spec: ops.UpdateMetadataSpec{Header: hdr("a"), SetProperties: map[string]string{"dc:creator": "x"}}, wantErr: "dc:creator"},
		{name: "optype mismatch", spec: ops.RemoveCursorSpec{Header: ops.Header{OpType: domain.OpAddCursor, MemberID: "a"}}, wantErr: "spec describes RemoveCursor"},
	}

	factory := ops.NewFactory()
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			op, err := factory.Create(tc.spec)
			require.Error(t, err)
			assert.Nil(t, op)
			assert.True(t, errors.Is(err, domain.ErrMalformedOperation))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestFactoryDecodeRejectsBadWireInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "unknown optype", data: `{"optype":"AddAnnotation","memberid":"a","timestamp":1}`, wantErr: domain.ErrUnknownOperation},
		{name: "missing optype", data: `{"memberid":"a","timestamp":1}`, wantErr: domain.ErrMalformedOperation},
		{name: "string timestamp", data: `{"optype":"AddCursor","memberid":"a","timestamp":"yesterday"}`, wantErr: domain.ErrMalformedOperation},
		{name: "not an object", data: `[1,2]`, wantErr: domain.ErrMalformedOperation},
		{name: "missing memberid", data: `{"optype":"AddCursor","timestamp":1}`, wantErr: domain.ErrMalformedOperation},
	}

	factory := ops.NewFactory()
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := factory.Decode([]byte(tc.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestFactoryDecodeBatchIsAllOrNothing(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	batch := [][]byte{
		[]byte(`{"optype":"AddMember","memberid":"a","timestamp":1,"setProperties":{"fullName":"A"}}`),
		[]byte(`{"optype":"AddCursor","memberid":"a","timestamp":2}`),
		[]byte(`{"optype":"InsertTable","memberid":"a","timestamp":3}`),
	}

	raw := make([]json.RawMessage, 0, len(batch))
	for _, data := range batch {
		raw = append(raw, data)
	}

	decoded, err := factory.DecodeBatch(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownOperation)
	assert.Nil(t, decoded)

	decoded, err = factory.DecodeBatch(raw[:2])
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, domain.OpAddMember, decoded[0].Type())
	assert.Equal(t, domain.OpAddCursor, decoded[1].Type())
}

func TestFactoryRestampKeepsPayload(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	op := mustCreate(t, factory, ops.InsertTextSpec{Header: hdr("a"), Position: 0, Text: "x"})

	restamped, err := factory.Restamp(op, 42, "g7")
	require.NoError(t, err)

	assert.Equal(t, int64(42), restamped.Timestamp())
	assert.Equal(t, "g7", restamped.Group())
	assert.Equal(t, int64(1700000000000), op.Timestamp())
	assert.Equal(t, "x", restamped.Spec().(ops.InsertTextSpec).Text)
}

func TestFactoryReattributeChangesOnlyTheMember(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	op := mustCreate(t, factory, ops.MoveCursorSpec{Header: hdr("a"), Position: 3, Length: 2})

	moved, err := factory.Reattribute(op, "b")
	require.NoError(t, err)

	assert.Equal(t, domain.MemberID("b"), moved.MemberID())
	assert.Equal(t, op.Timestamp(), moved.Timestamp())
	assert.Equal(t, 3, moved.Spec().(ops.MoveCursorSpec).Position)

	_, err = factory.Reattribute(op, " ")
	require.ErrorIs(t, err, domain.ErrMalformedOperation)
}

func TestAddCursorTwiceIsRejected(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	doc, rec := newDocument()

	assert.True(t, mustCreate(t, factory, ops.AddCursorSpec{Header: hdr("a")}).Execute(doc))
	before := doc.Snapshot()

	assert.False(t, mustCreate(t, factory, ops.AddCursorSpec{Header: hdr("a")}).Execute(doc))
	assert.Equal(t, before, doc.Snapshot())
	require.Len(t, rec.events, 1)
	assert.Equal(t, domain.EventCursorAdded, rec.events[0].Kind)
}

func TestAddMemberThenRemoveMemberKeepsCursor(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	doc, rec := newDocument()

	require.True(t, mustCreate(t, factory, ops.AddMemberSpec{Header: hdr("bob")}).Execute(doc))
	require.True(t, mustCreate(t, factory, ops.AddCursorSpec{Header: hdr("bob")}).Execute(doc))

	member, ok := doc.GetMember("bob")
	require.True(t, ok)
	assert.Equal(t, domain.DefaultMemberFullName, member.Properties.FullName)
	assert.Equal(t, domain.DefaultMemberColor, member.Properties.Color)
	assert.Equal(t, domain.DefaultMemberImageURL, member.Properties.ImageURL)

	require.True(t, mustCreate(t, factory, ops.RemoveMemberSpec{Header: hdr("bob")}).Execute(doc))

	_, ok = doc.GetMember("bob")
	assert.False(t, ok)
	_, ok = doc.GetCursor("bob")
	assert.True(t, ok)

	kinds := make([]domain.EventKind, 0, len(rec.events))
	for _, event := range rec.events {
		kinds = append(kinds, event.Kind)
	}
	assert.Equal(t, []domain.EventKind{domain.EventMemberAdded, domain.EventCursorAdded, domain.EventMemberRemoved}, kinds)
}

func TestRemoveMemberOnAbsentMemberIsRejected(t *testing.T) {
	t.Parallel()

	doc, rec := newDocument()
	op := mustCreate(t, ops.NewFactory(), ops.RemoveMemberSpec{Header: hdr("ghost")})

	assert.False(t, op.Execute(doc))
	assert.Empty(t, rec.events)
}

func TestUpdateMemberKeepsDisplayProperties(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	doc, _ := newDocument()

	require.True(t, mustCreate(t, factory, ops.AddMemberSpec{Header: hdr("a"), SetProperties: domain.MemberProperties{FullName: "Ann", Extra: map[string]string{"team": "docs"}}}).Execute(doc))
	require.True(t, mustCreate(t, factory, ops.UpdateMemberSpec{Header: hdr("a"), SetProperties: &domain.MemberProperties{Color: "green"}, RemovedProperties: []string{"team", "fullName"}}).Execute(doc))

	member, ok := doc.GetMember("a")
	require.True(t, ok)
	assert.Equal(t, "Ann", member.Properties.FullName)
	assert.Equal(t, "green", member.Properties.Color)
	assert.Nil(t, member.Properties.Extra)

	assert.False(t, mustCreate(t, factory, ops.UpdateMemberSpec{Header: hdr("nobody"), RemovedProperties: []string{"team"}}).Execute(doc))
}

func TestMoveCursorPlacesCursorWithoutClamping(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	doc, rec := newDocument()

	require.True(t, mustCreate(t, factory, ops.AddMemberSpec{Header: hdr("Bob")}).Execute(doc))
	require.True(t, mustCreate(t, factory, ops.AddCursorSpec{Header: hdr("Bob")}).Execute(doc))
	require.True(t, mustCreate(t, factory, ops.MoveCursorSpec{Header: hdr("Bob"), Position: 5}).Execute(doc))

	cursor, ok := doc.GetCursor("Bob")
	require.True(t, ok)
	assert.Equal(t, domain.Cursor{MemberID: "Bob", Position: 5, Length: 0, SelectionType: domain.SelectionRange}, cursor)
	assert.Equal(t, domain.EventCursorMoved, rec.events[len(rec.events)-1].Kind)

	assert.False(t, mustCreate(t, factory, ops.MoveCursorSpec{Header: hdr("Alice"), Position: 1}).Execute(doc))
}

func TestRemoveStyleOnAbsentStyleIsRejected(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	doc, rec := newDocument()

	assert.False(t, mustCreate(t, factory, ops.RemoveStyleSpec{Header: hdr("a"), StyleName: "P9", StyleFamily: domain.StyleFamilyParagraph}).Execute(doc))
	assert.Empty(t, rec.events)

	require.True(t, mustCreate(t, factory, ops.AddStyleSpec{Header: hdr("a"), StyleName: "P9", StyleFamily: domain.StyleFamilyParagraph}).Execute(doc))
	assert.False(t, mustCreate(t, factory, ops.AddStyleSpec{Header: hdr("a"), StyleName: "P9", StyleFamily: domain.StyleFamilyParagraph}).Execute(doc))
	require.True(t, mustCreate(t, factory, ops.RemoveStyleSpec{Header: hdr("a"), StyleName: "P9", StyleFamily: domain.StyleFamilyParagraph}).Execute(doc))

	require.Len(t, rec.events, 2)
	assert.Equal(t, domain.EventCommonStyleCreated, rec.events[0].Kind)
	assert.Equal(t, domain.EventCommonStyleDeleted, rec.events[1].Kind)
}

func TestConcurrentAddCursorConverges(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	addA := mustCreate(t, factory, ops.AddCursorSpec{Header: hdr("A")})
	addB := mustCreate(t, factory, ops.AddCursorSpec{Header: hdr("B")})

	first, _ := newDocument()
	second, _ := newDocument()
	require.True(t, addA.Execute(first))
	require.True(t, addB.Execute(first))
	require.True(t, addB.Execute(second))
	require.True(t, addA.Execute(second))

	assert.Equal(t, first.Snapshot(), second.Snapshot())
	assert.Len(t, first.Cursors(), 2)
}

func TestTextOperationsEditParagraphs(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	doc, rec := newDocument()

	steps := []ops.Spec{
		ops.AddCursorSpec{Header: hdr("a")},
		ops.InsertTextSpec{Header: hdr("a"), Position: 0, Text: "hello", MoveCursor: true},
		ops.SplitParagraphSpec{Header: hdr("a"), Position: 2, MoveCursor: true},
		ops.RemoveTextSpec{Header: hdr("a"), Position: 6, Length: -2},
		ops.AddStyleSpec{Header: hdr("a"), StyleName: "Heading", StyleFamily: domain.StyleFamilyParagraph},
		ops.SetParagraphStyleSpec{Header: hdr("a"), Position: 1, StyleName: "Heading"},
		ops.UpdateMetadataSpec{Header: hdr("a"), SetProperties: map[string]string{"dc:title": "Draft"}},
	}
	for _, spec := range steps {
		require.True(t, mustCreate(t, factory, spec).Execute(doc), "%T", spec)
	}

	assert.Equal(t, []string{"he", "l"}, doc.Text())
	assert.Len(t, rec.events, len(steps))

	state := doc.Snapshot()
	assert.Equal(t, "Heading", state.Paragraphs[0].Style)
	assert.Empty(t, state.Paragraphs[1].Style)
	assert.Equal(t, map[string]string{"dc:title": "Draft"}, state.Metadata)

	cursor, ok := doc.GetCursor("a")
	require.True(t, ok)
	assert.Equal(t, 3, cursor.Position)
}

func TestTextOperationGuards(t *testing.T) {
	t.Parallel()

	factory := ops.NewFactory()
	doc, rec := newDocument()

	assert.False(t, mustCreate(t, factory, ops.InsertTextSpec{Header: hdr("a"), Position: 3, Text: "x"}).Execute(doc))
	assert.False(t, mustCreate(t, factory, ops.RemoveTextSpec{Header: hdr("a"), Position: 0, Length: 1}).Execute(doc))
	assert.False(t, mustCreate(t, factory, ops.SetParagraphStyleSpec{Header: hdr("a"), Position: 0, StyleName: "Missing"}).Execute(doc))
	assert.False(t, mustCreate(t, factory, ops.RemoveBlobSpec{Header: hdr("a"), Filename: "none.png"}).Execute(doc))
	assert.Empty(t, rec.events)
}
