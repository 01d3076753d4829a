package csvio

import (
	"bytes"
	"strings"
	"testing"
)

func TestRead_Basic(t *testing.T) {
	in := "Name,Phone\nAcme,555-0100\nGlobex,\n"
	table, err := Read(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if len(table.Columns) != 2 || table.Columns[0] != "Name" || table.Columns[1] != "Phone" {
		t.Errorf("unexpected columns %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Name"] != "Acme" || table.Rows[0]["Phone"] != "555-0100" {
		t.Errorf("unexpected row %v", table.Rows[0])
	}
	if table.Rows[1]["Phone"] != "" {
		t.Errorf("expected empty phone, got %q", table.Rows[1]["Phone"])
	}
}

func TestRead_Semicolon(t *testing.T) {
	in := "Name;City\nAcme;Vienna\n"
	table, err := Read(strings.NewReader(in), Options{Delimiter: ';'})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.Rows[0]["City"] != "Vienna" {
		t.Errorf("unexpected row %v", table.Rows[0])
	}
}

func TestRead_Latin1(t *testing.T) {
	// "Müller" in ISO-8859-1: 0xFC for ü
	in := []byte("Name\nM\xfcller\n")
	table, err := Read(bytes.NewReader(in), Options{Encoding: "latin-1"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.Rows[0]["Name"] != "Müller" {
		t.Errorf("expected Müller, got %q", table.Rows[0]["Name"])
	}
}

func TestRead_Empty(t *testing.T) {
	table, err := Read(strings.NewReader(""), Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(table.Columns) != 0 || len(table.Rows) != 0 {
		t.Errorf("expected empty table, got %+v", table)
	}
}

func TestRead_UnsupportedEncoding(t *testing.T) {
	_, err := Read(strings.NewReader("a\n1\n"), Options{Encoding: "ebcdic"})
	if err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}
