package prompt

import (
	"strings"
	"testing"

	"github.com/copperline-io/ferry/engine"
)

func TestFormatChange(t *testing.T) {
	line := FormatChange(engine.FieldChange{
		Field:    "Phone",
		Current:  "555-0000",
		Proposed: "(415) 555-0100",
	})
	if !strings.Contains(line, "Phone:") {
		t.Errorf("expected field label, got %q", line)
	}
	if !strings.Contains(line, "555-0000") || !strings.Contains(line, "(415) 555-0100") {
		t.Errorf("expected both values, got %q", line)
	}
}

func TestFormatChange_EmptyCurrent(t *testing.T) {
	line := FormatChange(engine.FieldChange{Field: "Email", Proposed: "info@acme.example"})
	if !strings.Contains(line, "(empty)") {
		t.Errorf("expected placeholder for empty current value, got %q", line)
	}
}
