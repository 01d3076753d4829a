// Package prompt implements the interactive Decider used when ferry
// runs on a terminal: mapping prompts per column before a sync, and the
// confirmation view that gates enrichment updates.
package prompt

import (
	"fmt"

	"github.com/copperline-io/ferry/cli/tui"
	"github.com/copperline-io/ferry/engine"
)

// Interactive asks the user through Bubble Tea prompts.
type Interactive struct{}

var _ engine.Decider = (*Interactive)(nil)

// NewInteractive creates an interactive decider.
func NewInteractive() *Interactive {
	return &Interactive{}
}

// MapColumn prompts for the target field of one source column.
func (p *Interactive) MapColumn(column string) (engine.MapDecision, error) {
	target, skip, err := tui.RunMapColumn(column)
	if err != nil {
		return engine.MapDecision{}, fmt.Errorf("mapping prompt for %q: %w", column, err)
	}
	if skip {
		return engine.MapDecision{Skip: true}, nil
	}
	return engine.MapDecision{Target: target}, nil
}

// Confirm shows the proposed field changes and asks whether to apply.
func (p *Interactive) Confirm(diff []engine.FieldChange) (bool, error) {
	lines := make([]string, 0, len(diff))
	for _, change := range diff {
		lines = append(lines, FormatChange(change))
	}
	ok, err := tui.RunConfirm("Apply these changes?", lines)
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return ok, nil
}

// FormatChange renders one field change as a styled prompt line.
func FormatChange(change engine.FieldChange) string {
	current := change.Current
	if current == "" {
		current = "(empty)"
	}
	return fmt.Sprintf("%s %s -> %s",
		tui.LabelStyle.Render(change.Field+":"),
		tui.ErrorStyle.Render(current),
		tui.SuccessStyle.Render(change.Proposed),
	)
}
