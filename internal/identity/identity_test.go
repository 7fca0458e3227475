package identity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestLoadOrCreate_PersistsID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "instance-id")

	first, err := LoadOrCreate(path, "http://jenkins.test/")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := uuid.Parse(first.InstanceID); err != nil {
		t.Errorf("instance id should be a UUID, got %q", first.InstanceID)
	}
	if first.SelfURL != "http://jenkins.test/" {
		t.Errorf("self url = %q", first.SelfURL)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("identity file mode = %v, want 0600", info.Mode().Perm())
	}

	second, err := LoadOrCreate(path, "http://jenkins.other/")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if second.InstanceID != first.InstanceID {
		t.Errorf("instance id changed across restarts: %s -> %s", first.InstanceID, second.InstanceID)
	}
	if second.SelfURL != "http://jenkins.other/" {
		t.Errorf("self url should come from config, got %q", second.SelfURL)
	}
}

func TestLoadOrCreate_Ephemeral(t *testing.T) {
	a, err := LoadOrCreate("", "http://jenkins.test/")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := LoadOrCreate("", "http://jenkins.test/")
	if a.InstanceID == b.InstanceID {
		t.Error("ephemeral identities should differ")
	}
}

func TestLoadOrCreate_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance-id")
	if err := os.WriteFile(path, []byte("not-a-uuid"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadOrCreate(path, ""); !errors.Is(err, ErrInvalidInstanceID) {
		t.Errorf("expected ErrInvalidInstanceID, got %v", err)
	}
}
