package csvio

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/types"
)

func TestFileSink_NoFileUntilFirstRecord(t *testing.T) {
	dir := t.TempDir()
	meta := types.NewRunMeta("Account", types.OpInsert)
	sink := NewFileSink(dir, "accounts.csv", []string{"Name", "Phone"}, ',', meta)

	if sink.Path() != "" {
		t.Errorf("expected empty path before first write, got %s", sink.Path())
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no error file, found %d entries", len(entries))
	}
}

func TestFileSink_RecordsRowsWithReason(t *testing.T) {
	dir := t.TempDir()
	meta := types.NewRunMeta("Account", types.OpUpsert)
	sink := NewFileSink(dir, "accounts.csv", []string{"Name", "Phone"}, ',', meta)

	row := types.Row{"Name": "Acme", "Phone": "555-0100"}
	if err := sink.Record(row, "DUPLICATE_VALUE: dup", types.OpUpsert); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if sink.Count() != 1 {
		t.Errorf("expected count 1, got %d", sink.Count())
	}

	f, err := os.Open(sink.Path())
	if err != nil {
		t.Fatalf("open error file: %v", err)
	}
	defer iox.DiscardClose(f)

	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read error file: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}

	wantHeader := []string{"Name", "Phone", "error_reason", "failed_at", "source_operation"}
	for i, col := range wantHeader {
		if lines[0][i] != col {
			t.Errorf("header %d: expected %s, got %s", i, col, lines[0][i])
		}
	}

	got := lines[1]
	if got[0] != "Acme" || got[1] != "555-0100" {
		t.Errorf("original fields not preserved: %v", got)
	}
	if !strings.Contains(got[2], "DUPLICATE_VALUE") {
		t.Errorf("reason missing: %q", got[2])
	}
	if _, err := time.Parse(time.RFC3339, got[3]); err != nil {
		t.Errorf("failed_at not RFC3339: %q", got[3])
	}
	if got[4] != "upsert" {
		t.Errorf("expected operation upsert, got %q", got[4])
	}
}

func TestFileSink_DistinctFilesPerRun(t *testing.T) {
	dir := t.TempDir()
	a := NewFileSink(dir, "accounts.csv", []string{"Name"}, ',', types.NewRunMeta("Account", types.OpInsert))
	b := NewFileSink(dir, "accounts.csv", []string{"Name"}, ',', types.NewRunMeta("Account", types.OpInsert))

	if err := a.Record(types.Row{"Name": "x"}, "r", types.OpInsert); err != nil {
		t.Fatalf("record a: %v", err)
	}
	if err := b.Record(types.Row{"Name": "y"}, "r", types.OpInsert); err != nil {
		t.Fatalf("record b: %v", err)
	}
	defer iox.DiscardErr(a.Close)
	defer iox.DiscardErr(b.Close)

	if a.Path() == b.Path() {
		t.Errorf("two runs share the error file: %s", a.Path())
	}
}

func TestFileSink_UnwritableDirFails(t *testing.T) {
	meta := types.NewRunMeta("Account", types.OpInsert)
	// a file where the directory should be
	dir := t.TempDir() + "/blocked"
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	sink := NewFileSink(dir, "accounts.csv", []string{"Name"}, ',', meta)
	if err := sink.Record(types.Row{"Name": "x"}, "r", types.OpInsert); err == nil {
		t.Fatal("expected error when the error directory cannot be created")
	}
}
