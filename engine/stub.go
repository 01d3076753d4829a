package engine

// ScriptedDecider is an in-memory Decider for tests and automation.
// Columns answer from Decisions (absent columns are skipped unless
// MapAllIdentity is set); Confirm records the presented diff and returns
// ConfirmAnswer.
type ScriptedDecider struct {
	// Decisions answers MapColumn per source column.
	Decisions map[string]MapDecision
	// MapAllIdentity maps columns missing from Decisions to themselves
	// instead of skipping them.
	MapAllIdentity bool

	// ConfirmAnswer is returned by every Confirm call.
	ConfirmAnswer bool
	// ConfirmCalls counts Confirm invocations.
	ConfirmCalls int
	// LastDiff is the diff most recently presented to Confirm.
	LastDiff []FieldChange
}

func (d *ScriptedDecider) MapColumn(column string) (MapDecision, error) {
	if dec, ok := d.Decisions[column]; ok {
		return dec, nil
	}
	if d.MapAllIdentity {
		return MapDecision{}, nil
	}
	return MapDecision{Skip: true}, nil
}

func (d *ScriptedDecider) Confirm(diff []FieldChange) (bool, error) {
	d.ConfirmCalls++
	d.LastDiff = append([]FieldChange(nil), diff...)
	return d.ConfirmAnswer, nil
}

var _ Decider = (*ScriptedDecider)(nil)
