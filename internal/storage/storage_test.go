package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"bluecut/internal/domain"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "inputs/a.png", want: "inputs/a.png"},
		{key: "./outputs//b.jpg", want: "outputs/b.jpg"},
		{key: `inputs\c.webp`, want: "inputs/c.webp"},
		{key: "../etc/passwd", wantErr: true},
		{key: "inputs/../../etc/passwd", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "..", wantErr: true},
		{key: ".", wantErr: true},
		{key: "  ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrInvalidKey) {
				t.Fatalf("sanitizeKey(%q) err = %v, want ErrInvalidKey", tc.key, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) unexpected error: %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewGateway(files)
}

func TestGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)
	data := []byte{0xFF, 0xD8, 0xFF, 0x01, 0x02}

	in, err := g.WriteInput(ctx, Input{JobID: "job-1", Data: data, Mime: "image/jpg", OriginalName: "cat.jpg"})
	if err != nil {
		t.Fatalf("WriteInput: %v", err)
	}
	if in.Key != "inputs/job-1.jpg" || in.Mime != "image/jpeg" || in.Size != int64(len(data)) || in.OriginalName != "cat.jpg" {
		t.Fatalf("WriteInput = %+v", in)
	}

	out, err := g.WriteOutput(ctx, "job-1", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	if out.Key != "outputs/job-1.png" || out.Size != 9 {
		t.Fatalf("WriteOutput = %+v", out)
	}

	got, err := g.Read(ctx, in.Key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Read returned %v, want %v", got, data)
	}
	if ok, _ := g.Exists(ctx, out.Key); !ok {
		t.Fatalf("output reported missing")
	}
	if err := g.Remove(ctx, out.Key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := g.Exists(ctx, out.Key); ok {
		t.Fatalf("removed output still present")
	}
}

func TestGatewayReadMissingAndInvalid(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)
	if _, err := g.Read(ctx, "inputs/nope.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing blob err = %v, want ErrNotFound", err)
	}
	if _, err := g.Read(ctx, domain.InputKeyPending); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("pending key err = %v, want ErrNotFound", err)
	}
	if _, err := g.Read(ctx, "../../secret"); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatalf("escaping key err = %v, want ErrInvalidKey", err)
	}
}

func TestConcurrentWritesToOneKey(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	files, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	payloads := make([][]byte, 16)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 64<<10)
	}

	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			if _, err := files.Write(ctx, "outputs/job-1.png", p); err != nil {
				t.Errorf("Write: %v", err)
			}
		}(p)
	}
	wg.Wait()

	got, err := files.Read(ctx, "outputs/job-1.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	whole := false
	for _, p := range payloads {
		if bytes.Equal(got, p) {
			whole = true
		}
	}
	if !whole {
		t.Fatalf("stored blob mixes writers")
	}
	entries, err := os.ReadDir(filepath.Join(root, "outputs"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("outputs dir holds %d entries, want 1", len(entries))
	}
}
