package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConfirmModel_Yes(t *testing.T) {
	m := NewConfirmModel("Apply changes to Account?", []string{"Phone: -> (415) 555-0100"})

	updated, cmd := m.Update(keyMsg("y"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !updated.(ConfirmModel).Confirmed() {
		t.Error("expected answer=true after y")
	}
}

func TestConfirmModel_No(t *testing.T) {
	m := NewConfirmModel("Apply changes?", nil)

	updated, cmd := m.Update(keyMsg("n"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if updated.(ConfirmModel).Confirmed() {
		t.Error("expected answer=false after n")
	}
}

func TestConfirmModel_EnterAccepts(t *testing.T) {
	m := NewConfirmModel("Apply changes?", nil)

	updated, _ := m.Update(keyMsg("enter"))
	if !updated.(ConfirmModel).Confirmed() {
		t.Error("expected enter to accept")
	}
}

func TestConfirmModel_ViewShowsLines(t *testing.T) {
	m := NewConfirmModel("Apply changes to Account?", []string{
		"Phone: -> (415) 555-0100",
		"Website: -> https://acme.example",
	})

	view := m.View()
	if !strings.Contains(view, "Apply changes to Account?") {
		t.Error("view should contain the title")
	}
	if !strings.Contains(view, "(415) 555-0100") {
		t.Error("view should contain the diff lines")
	}
}

func TestConfirmModel_ViewEmptyAfterAnswer(t *testing.T) {
	m := NewConfirmModel("Apply?", nil)
	updated, _ := m.Update(keyMsg("y"))
	if got := updated.(ConfirmModel).View(); got != "" {
		t.Errorf("expected empty view after answering, got %q", got)
	}
}

func TestMapColumnModel_EnterWithTextRenames(t *testing.T) {
	m := NewMapColumnModel("Company")

	var model tea.Model = m
	for _, r := range "Name" {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	model, cmd := model.Update(keyMsg("enter"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	final := model.(MapColumnModel)
	if final.Skipped() {
		t.Error("expected column not skipped")
	}
	if final.Target() != "Name" {
		t.Errorf("expected target Name, got %q", final.Target())
	}
}

func TestMapColumnModel_EnterEmptyKeepsName(t *testing.T) {
	m := NewMapColumnModel("Phone")

	model, _ := m.Update(keyMsg("enter"))
	final := model.(MapColumnModel)
	if final.Skipped() {
		t.Error("expected column not skipped")
	}
	if final.Target() != "" {
		t.Errorf("expected empty target (identity), got %q", final.Target())
	}
}

func TestMapColumnModel_EscSkips(t *testing.T) {
	m := NewMapColumnModel("Internal Notes")

	model, cmd := m.Update(keyMsg("esc"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !model.(MapColumnModel).Skipped() {
		t.Error("expected column skipped after esc")
	}
}

func TestMapColumnModel_ViewShowsColumn(t *testing.T) {
	m := NewMapColumnModel("Company")
	if !strings.Contains(m.View(), "Company") {
		t.Error("view should name the column")
	}
}

func TestStateStyle(t *testing.T) {
	// Distinct styles per state family; exact colors are not asserted.
	if StateStyle("succeeded").GetForeground() != SuccessStyle.GetForeground() {
		t.Error("succeeded should use the success style")
	}
	if StateStyle("failed").GetForeground() != ErrorStyle.GetForeground() {
		t.Error("failed should use the error style")
	}
	if StateStyle("retrying").GetForeground() != WarningStyle.GetForeground() {
		t.Error("retrying should use the warning style")
	}
}
