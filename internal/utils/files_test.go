package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/filflo-cli/internal/utils"
)

func TestSafeWriteFile_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out", "enhanced.csv")
	if err := utils.SafeWriteFile(p, []byte("a\n1\n")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := utils.SafeWriteFile(p, []byte("a\n2\n")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "a\n2\n" {
		t.Fatalf("content = %q", b)
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("expected only the output file, got %d entries", len(entries))
	}
}

func TestStageFile_DiscardLeavesDestinationUntouched(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "enriched.csv")
	if err := os.WriteFile(p, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := utils.StageFile(p, []byte("new\n"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	s.Discard()
	b, _ := os.ReadFile(p)
	if string(b) != "old\n" {
		t.Fatalf("content = %q", b)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the original file, got %d entries", len(entries))
	}
}

func TestCommitAll_RenamesEveryStagedFile(t *testing.T) {
	dir := t.TempDir()
	var staged []*utils.StagedFile
	for _, name := range []string{"a.csv", "b.csv"} {
		s, err := utils.StageFile(filepath.Join(dir, name), []byte(name))
		if err != nil {
			t.Fatalf("stage %s: %v", name, err)
		}
		staged = append(staged, s)
	}
	if err := utils.CommitAll(staged); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for _, name := range []string{"a.csv", "b.csv"} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || string(b) != name {
			t.Fatalf("%s: %q, %v", name, b, err)
		}
	}
}
