package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSession_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.LoggedIn() {
		t.Error("fresh session should be logged out")
	}

	creds := Credentials{
		Token:          "tok-abc",
		UserID:         "user-1",
		OrganizationID: "org-1",
	}
	if err := s.Save(creds); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("Open() after save error = %v", err)
	}
	if reloaded.Token() != "tok-abc" {
		t.Errorf("Token() = %q", reloaded.Token())
	}
	if reloaded.ActorID() != "user-1" {
		t.Errorf("ActorID() = %q", reloaded.ActorID())
	}
	if reloaded.OrganizationID() != "org-1" {
		t.Errorf("OrganizationID() = %q", reloaded.OrganizationID())
	}
}

func TestSession_SaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Save(Credentials{Token: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("credential file missing: %v", err)
	}
}

func TestSession_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	s, _ := Open(path)
	s.Save(Credentials{Token: "tok", UserID: "u", OrganizationID: "o"})

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.LoggedIn() {
		t.Error("session should be logged out after Clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("credential file should be removed")
	}

	// Clearing again is safe.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestOpen_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	if _, err := Open(path); err == nil {
		t.Error("expected error for corrupt credential file")
	}
}
