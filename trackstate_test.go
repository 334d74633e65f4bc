package trackstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := os.WriteFile(path, []byte("user:\n  name: Ada\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	notified := 0
	n := s.Observe(func() { notified++ })
	if got := n.Field("user").Field("name").Value(); got != "Ada" {
		t.Fatalf("user.name = %v, want Ada", got)
	}

	if _, err := s.Set(P("user", "name"), "Grace"); err != nil {
		t.Fatal(err)
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Open() of a missing file should fail")
	}
}
