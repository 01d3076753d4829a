package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// MapColumnModel is a Bubble Tea model asking for the target field of
// one source column. Enter with an empty input keeps the column name,
// Esc skips the column entirely.
type MapColumnModel struct {
	column string
	input  textinput.Model

	skip bool
	done bool
}

type mapKeyMap struct {
	Accept key.Binding
	Skip   key.Binding
}

var mapKeys = mapKeyMap{
	Accept: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "accept"),
	),
	Skip: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "skip column"),
	),
}

// NewMapColumnModel creates a mapping prompt for one column.
func NewMapColumnModel(column string) MapColumnModel {
	ti := textinput.New()
	ti.Placeholder = column
	ti.CharLimit = 80
	ti.Focus()
	return MapColumnModel{column: column, input: ti}
}

// Init implements tea.Model.
func (m MapColumnModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m MapColumnModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, mapKeys.Accept):
			m.done = true
			return m, tea.Quit
		case key.Matches(keyMsg, mapKeys.Skip):
			m.skip = true
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m MapColumnModel) View() string {
	if m.done {
		return ""
	}

	title := TitleStyle.Render(fmt.Sprintf("Map column %q", m.column))
	help := HelpStyle.Render("enter accept · empty keeps name · esc skip column")
	return title + "\n" + m.input.View() + "\n" + help
}

// Skipped reports whether the user skipped the column.
func (m MapColumnModel) Skipped() bool {
	return m.skip
}

// Target returns the entered target field name. Empty means identity.
func (m MapColumnModel) Target() string {
	return m.input.Value()
}

// RunMapColumn shows the prompt and blocks until the user decides.
func RunMapColumn(column string) (target string, skip bool, err error) {
	final, err := tea.NewProgram(NewMapColumnModel(column)).Run()
	if err != nil {
		return "", false, err
	}
	model := final.(MapColumnModel)
	return model.Target(), model.Skipped(), nil
}
