package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/copperline-io/ferry/types"
)

func testMeta() *types.RunMeta {
	return &types.RunMeta{
		RunID:     "run-42",
		Object:    "Account",
		Operation: types.OpInsert,
		StartedAt: time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	got := Key(testMeta(), "/tmp/errors/failed_accounts.csv")
	want := "object=Account/day=2026-08-29/run_id=run-42/failed_accounts.csv"
	if got != want {
		t.Errorf("key: got %q, want %q", got, want)
	}
}

func TestFS_StoreCopiesUnderPartitionKey(t *testing.T) {
	src := filepath.Join(t.TempDir(), "failed_accounts.csv")
	if err := os.WriteFile(src, []byte("Name,error_reason\nAcme,bad\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	root := t.TempDir()
	a := NewFS(root)

	dest, err := a.Store(context.Background(), testMeta(), src)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	want := filepath.Join(root, "object=Account", "day=2026-08-29", "run_id=run-42", "failed_accounts.csv")
	if dest != want {
		t.Errorf("dest: got %q, want %q", dest, want)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read archived copy: %v", err)
	}
	if string(data) != "Name,error_reason\nAcme,bad\n" {
		t.Errorf("archived content: %q", data)
	}
}

func TestFS_StoreMissingSource(t *testing.T) {
	a := NewFS(t.TempDir())
	if _, err := a.Store(context.Background(), testMeta(), "/nonexistent.csv"); err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestNoop(t *testing.T) {
	dest, err := Noop{}.Store(context.Background(), testMeta(), "/anything.csv")
	if err != nil || dest != "" {
		t.Errorf("noop store: got (%q, %v)", dest, err)
	}
}

// putRecorder records PutObject calls and their bodies.
type putRecorder struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (r *putRecorder) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	r.inputs = append(r.inputs, in)
	r.bodies = append(r.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3_StoreUploadsWithPrefixedKey(t *testing.T) {
	src := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(src, []byte("Id\n001\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := &putRecorder{}
	a := newS3WithClient(rec, S3Config{Bucket: "ferry-archive", Prefix: "runs"})

	dest, err := a.Store(context.Background(), testMeta(), src)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if len(rec.inputs) != 1 {
		t.Fatalf("put calls: got %d, want 1", len(rec.inputs))
	}
	in := rec.inputs[0]
	if *in.Bucket != "ferry-archive" {
		t.Errorf("bucket: %q", *in.Bucket)
	}
	wantKey := "runs/object=Account/day=2026-08-29/run_id=run-42/export.csv"
	if *in.Key != wantKey {
		t.Errorf("key: got %q, want %q", *in.Key, wantKey)
	}
	if rec.bodies[0] != "Id\n001\n" {
		t.Errorf("body: %q", rec.bodies[0])
	}
	if dest != "s3://ferry-archive/"+wantKey {
		t.Errorf("dest: %q", dest)
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path   string
		bucket string
		prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/deep/prefix", "bucket", "deep/prefix"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.path, bucket, prefix, tt.bucket, tt.prefix)
		}
	}
}
