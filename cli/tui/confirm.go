package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmModel is a Bubble Tea model asking a yes/no question over a
// block of detail lines, such as a proposed field diff.
type ConfirmModel struct {
	title string
	lines []string

	answer bool
	done   bool
}

type confirmKeyMap struct {
	Yes  key.Binding
	No   key.Binding
	Quit key.Binding
}

var confirmKeys = confirmKeyMap{
	Yes: key.NewBinding(
		key.WithKeys("y", "Y", "enter"),
		key.WithHelp("y", "apply"),
	),
	No: key.NewBinding(
		key.WithKeys("n", "N", "esc"),
		key.WithHelp("n", "skip"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NewConfirmModel creates a confirmation prompt.
func NewConfirmModel(title string, lines []string) ConfirmModel {
	return ConfirmModel{title: title, lines: lines}
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, confirmKeys.Yes):
		m.answer = true
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, confirmKeys.No), key.Matches(keyMsg, confirmKeys.Quit):
		m.answer = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m ConfirmModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n\n")
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	help := HelpStyle.Render("y apply · n skip")
	return BoxStyle.Render(b.String()) + "\n" + help
}

// Confirmed reports the user's answer. Only meaningful after the
// program has finished.
func (m ConfirmModel) Confirmed() bool {
	return m.answer
}

// RunConfirm shows the prompt and blocks until the user answers.
func RunConfirm(title string, lines []string) (bool, error) {
	final, err := tea.NewProgram(NewConfirmModel(title, lines)).Run()
	if err != nil {
		return false, err
	}
	return final.(ConfirmModel).Confirmed(), nil
}
