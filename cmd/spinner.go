package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

type hostCallDoneMsg struct {
	err error
}

// hostCallModel spins while a call to the session host is in flight.
type hostCallModel struct {
	spinner spinner.Model
	label   string
	call    tea.Cmd
	err     error
	done    bool
}

func newHostCallModel(label string, call tea.Cmd) hostCallModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("36"))),
	)

	return hostCallModel{
		spinner: s,
		label:   label,
		call:    call,
	}
}

func (m hostCallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.call)
}

func (m hostCallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case hostCallDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m hostCallModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

func withSpinner(ctx context.Context, output io.Writer, label string, call func(context.Context) error) error {
	callCmd := func() tea.Msg {
		return hostCallDoneMsg{err: call(ctx)}
	}

	p := tea.NewProgram(
		newHostCallModel(label, callCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(hostCallModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}

// withProgress skips the spinner in quiet mode and off a terminal.
func (a *app) withProgress(ctx context.Context, label string, call func(context.Context) error) error {
	if a.config.GetBool(keyQuiet) || !isTerminal(a.stderr) {
		return call(ctx)
	}

	return withSpinner(ctx, a.stderr, label, call)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
