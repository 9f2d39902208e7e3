package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/odfops/internal/domain"
)

func TestRenderDocumentState(t *testing.T) {
	output, err := Render(Snapshot{
		SessionID: "doc",
		Head:      7,
		Digest:    "00ff00ff00ff00ff",
		State: domain.DocumentState{
			Members: []domain.Member{
				{ID: "m1", Properties: domain.MemberProperties{FullName: "Alice", Color: "#ff0000"}},
				{ID: "m2", Properties: domain.MemberProperties{FullName: "Bob", Color: "black"}},
			},
			Cursors: []domain.Cursor{
				{MemberID: "m1", Position: 5, SelectionType: domain.SelectionRange},
				{MemberID: "m2", Position: 0, Length: 2, SelectionType: domain.SelectionRegion},
			},
			Styles: []domain.Style{
				{Name: "Heading", Family: domain.StyleFamily("paragraph"), Properties: map[string]string{"fo:font-weight": "bold"}},
			},
			Blobs:      []domain.Blob{{Filename: "img.png", Mimetype: "image/png", Content: "aGVsbG8="}},
			Paragraphs: []domain.Paragraph{{Style: "Heading", Text: "Title"}, {Text: "body"}},
			Metadata:   map[string]string{"dc:title": "Notes"},
		},
	}, RenderOptions{BarWidth: 10})

	require.NoError(t, err)
	assert.Contains(t, output, "Session doc")
	assert.Contains(t, output, "head: 7  digest: 00ff00ff00ff00ff")
	assert.Contains(t, output, "members: 2")
	assert.Contains(t, output, "Alice (m1)")
	assert.Contains(t, output, "at 5, length 0, range")
	assert.Contains(t, output, "at 0, length 2, region")
	assert.Contains(t, output, "paragraphs: 2")
	assert.Contains(t, output, "Title [Heading]")
	assert.Contains(t, output, "paragraph/Heading (common) fo:font-weight=bold")
	assert.Contains(t, output, "img.png image/png, 8 bytes")
	assert.Contains(t, output, "dc:title=Notes")
}

func TestRenderEmptyDocument(t *testing.T) {
	output, err := Render(Snapshot{State: domain.DocumentState{Paragraphs: []domain.Paragraph{{}}}}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "Document")
	assert.Contains(t, output, "head: 0")
	assert.NotContains(t, output, "digest")
	assert.Contains(t, output, "No members.")
	assert.NotContains(t, output, "styles:")
	assert.NotContains(t, output, "metadata")
}

func TestRenderShowsOrphanedCursors(t *testing.T) {
	output, err := Render(Snapshot{State: domain.DocumentState{
		Cursors:    []domain.Cursor{{MemberID: "gone", Position: 1, SelectionType: domain.SelectionRange}},
		Paragraphs: []domain.Paragraph{{Text: "ab"}},
	}}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "cursor of departed gone at 1")
	assert.NotContains(t, output, "No members.")
}

func TestRenderCursorBar(t *testing.T) {
	s := newStyles()

	testCases := []struct {
		name     string
		position int
		total    int
		want     string
	}{
		{name: "start", position: 0, total: 11, want: "[|----]"},
		{name: "middle", position: 5, total: 11, want: "[==|--]"},
		{name: "end", position: 10, total: 11, want: "[====|]"},
		{name: "past end", position: 40, total: 11, want: "[====|]"},
		{name: "empty document", position: 0, total: 1, want: "[|----]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := renderCursorBar(domain.Cursor{Position: tc.position}, tc.total, 5, s)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 0))
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "hel…", truncate("hello", 4))
	assert.Equal(t, "…", truncate("hello", 1))
	assert.Equal(t, 3, len([]rune(truncate("ééééé", 3))))
	assert.True(t, strings.HasSuffix(truncate("ééééé", 3), "…"))
}
