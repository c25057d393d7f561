package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func tempDir(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempDir(t)
	content := []byte{0x0a, 0x00, 0x01}
	if err := s.Write("recipe_list.pb", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("recipe_list.pb")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %v", got)
	}
}

func TestReadMissingIsNotExist(t *testing.T) {
	s := tempDir(t)
	_, err := s.Read("missing.pb")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestMove(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("old.pb", []byte("data"))
	if err := s.Move("old.pb", "quarantine/old.pb"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("quarantine/old.pb")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	ok, err := s.Exists("old.pb")
	if err != nil || ok {
		t.Errorf("old path still exists: ok=%v err=%v", ok, err)
	}
}

func TestExists(t *testing.T) {
	s := tempDir(t)
	ok, err := s.Exists("a.pb")
	if err != nil || ok {
		t.Fatalf("Exists before write: ok=%v err=%v", ok, err)
	}
	_ = s.Write("a.pb", []byte("x"))
	ok, err = s.Exists("a.pb")
	if err != nil || !ok {
		t.Fatalf("Exists after write: ok=%v err=%v", ok, err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDir(t)
	for _, p := range []string{"../../etc/passwd", "../outside.pb", "/etc/shadow", "", "."} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("atomic.pb", []byte("original"))
	if err := s.Write("atomic.pb", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.pb")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".recipebox-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS("/tmp/recipebox-does-not-exist-" + t.Name()); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "recipebox-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
