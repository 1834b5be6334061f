package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestLocalRoundTrip(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}
	ctx := context.Background()
	owner := uuid.New()

	path, err := local.Save(ctx, []byte("photo bytes"), CategoryOriginals, owner, "shot.jpg")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(path, CategoryOriginals+"/"+owner.String()+"/") {
		t.Errorf("unexpected blob path %q", path)
	}

	data, err := local.Read(ctx, path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "photo bytes" {
		t.Errorf("round trip mismatch: %q", data)
	}

	if got := local.URL(path); got != "/files/"+path {
		t.Errorf("unexpected URL %q", got)
	}

	localPath, cleanup, err := local.LocalPath(ctx, path)
	if err != nil {
		t.Fatalf("local path failed: %v", err)
	}
	defer cleanup()
	if localPath == "" {
		t.Error("expected a real filesystem path")
	}

	if err := local.Delete(ctx, path); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := local.Read(ctx, path); err == nil {
		t.Error("expected read to fail after delete")
	}
}

func TestLocalDeleteMissingIsNoError(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	if err := local.Delete(context.Background(), "originals/nope/gone.jpg"); err != nil {
		t.Errorf("deleting a missing blob must not error, got %v", err)
	}
}

func TestRandomFilename(t *testing.T) {
	a := RandomFilename(".png")
	b := RandomFilename(".png")

	if a == b {
		t.Error("expected unique filenames")
	}
	if !strings.HasSuffix(a, ".png") {
		t.Errorf("expected .png suffix, got %q", a)
	}
}
