package state

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/odfops/internal/domain"
)

type RenderOptions struct {
	// MaxTextWidth truncates longer paragraphs; zero keeps them whole.
	MaxTextWidth int
	// BarWidth is the width of the cursor position bars.
	BarWidth int
}

func renderView(snapshot Snapshot, opts RenderOptions, s styles) string {
	state := snapshot.State

	header := fmt.Sprintf("head: %d", snapshot.Head)
	if snapshot.Digest != "" {
		header += "  digest: " + snapshot.Digest
	}

	title := "Document"
	if snapshot.SessionID != "" {
		title = fmt.Sprintf("Session %s", snapshot.SessionID)
	}

	lines := []string{
		s.title.Render(title),
		s.header.Render(header),
		s.section.Render(renderMembers(state, opts, s)),
		s.section.Render(renderParagraphs(state.Paragraphs, opts, s)),
	}

	if len(state.Styles) > 0 {
		lines = append(lines, s.section.Render(renderStyles(state.Styles, s)))
	}
	if len(state.Blobs) > 0 {
		lines = append(lines, s.section.Render(renderBlobs(state.Blobs, s)))
	}
	if len(state.Metadata) > 0 {
		lines = append(lines, s.section.Render(renderMetadata(state.Metadata, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderMembers(state domain.DocumentState, opts RenderOptions, s styles) string {
	parts := []string{s.heading.Render(fmt.Sprintf("members: %d", len(state.Members)))}

	cursors := make(map[domain.MemberID]domain.Cursor, len(state.Cursors))
	for _, cursor := range state.Cursors {
		cursors[cursor.MemberID] = cursor
	}

	total := documentLength(state.Paragraphs)
	for _, member := range state.Members {
		name := memberStyle(member.Properties.Color, s).Render(member.Properties.FullName)
		line := fmt.Sprintf("%s (%s)", name, member.ID)
		if cursor, ok := cursors[member.ID]; ok {
			line += " " + renderCursorBar(cursor, total, opts.BarWidth, s) + " " + s.detail.Render(cursorLabel(cursor))
			delete(cursors, member.ID)
		}
		parts = append(parts, line)
	}

	orphans := make([]domain.Cursor, 0, len(cursors))
	for _, cursor := range cursors {
		orphans = append(orphans, cursor)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].MemberID < orphans[j].MemberID })
	for _, cursor := range orphans {
		parts = append(parts, s.empty.Render(fmt.Sprintf("cursor of departed %s %s", cursor.MemberID, cursorLabel(cursor))))
	}

	if len(state.Members) == 0 && len(orphans) == 0 {
		parts = append(parts, s.empty.Render("No members."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func memberStyle(color string, s styles) lipgloss.Style {
	if strings.HasPrefix(color, "#") {
		return s.member.Foreground(lipgloss.Color(color))
	}
	return s.member
}

func cursorLabel(cursor domain.Cursor) string {
	return fmt.Sprintf("at %d, length %d, %s", cursor.Position, cursor.Length, strings.ToLower(string(cursor.SelectionType)))
}

func documentLength(paragraphs []domain.Paragraph) int {
	total := 0
	for _, p := range paragraphs {
		total += utf8.RuneCountInString(p.Text) + 1
	}
	return total
}

func renderCursorBar(cursor domain.Cursor, total, width int, s styles) string {
	if width <= 0 {
		width = 24
	}

	at := 0
	if total > 1 {
		fraction := float64(clamp(cursor.Position, 0, total-1)) / float64(total-1)
		at = int(math.Round(fraction * float64(width-1)))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", at)),
		s.barCursor.Render("|"),
		s.barEmpty.Render(strings.Repeat("-", width-at-1)),
		s.barBracket.Render("]"),
	)
}

func renderParagraphs(paragraphs []domain.Paragraph, opts RenderOptions, s styles) string {
	parts := []string{s.heading.Render(fmt.Sprintf("paragraphs: %d", len(paragraphs)))}

	for i, p := range paragraphs {
		line := fmt.Sprintf("%3d ", i+1) + s.paragraph.Render(truncate(p.Text, opts.MaxTextWidth))
		if p.Style != "" {
			line += " " + s.styleName.Render("["+p.Style+"]")
		}
		parts = append(parts, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderStyles(list []domain.Style, s styles) string {
	parts := []string{s.heading.Render(fmt.Sprintf("styles: %d", len(list)))}

	for _, style := range list {
		kind := "common"
		if style.Automatic {
			kind = "automatic"
		}
		parts = append(parts, s.detail.Render(fmt.Sprintf("%s/%s (%s) %s", style.Family, style.Name, kind, formatProperties(style.Properties))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderBlobs(blobs []domain.Blob, s styles) string {
	parts := []string{s.heading.Render(fmt.Sprintf("blobs: %d", len(blobs)))}

	for _, blob := range blobs {
		parts = append(parts, s.detail.Render(fmt.Sprintf("%s %s, %d bytes", blob.Filename, blob.Mimetype, len(blob.Content))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderMetadata(metadata map[string]string, s styles) string {
	parts := []string{s.heading.Render("metadata")}
	parts = append(parts, s.detail.Render(formatProperties(metadata)))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func formatProperties(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+props[key])
	}
	return strings.Join(pairs, " ")
}

func truncate(text string, width int) string {
	if width <= 0 || utf8.RuneCountInString(text) <= width {
		return text
	}
	if width == 1 {
		return "…"
	}

	runes := []rune(text)
	return string(runes[:width-1]) + "…"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
