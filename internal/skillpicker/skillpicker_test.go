package skillpicker

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, name, front string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(front), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListMissingDir(t *testing.T) {
	out, err := List(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty list, got %v", out)
	}
}

func TestListParsesFrontmatter(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "deploy", "---\nname: deploy\ndescription: ship it\n---\n\nbody\n")
	writeSkill(t, root, "no-front-matter", "# just a heading\n")

	out, err := List(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}

	var found bool
	for _, s := range out {
		if s.Name == "deploy" && s.Description == "ship it" {
			found = true
		}
		if s.Dir == filepath.Join(root, "no-front-matter") && s.Name != "no-front-matter" {
			t.Fatalf("expected fallback name from dir, got %q", s.Name)
		}
	}
	if !found {
		t.Fatalf("expected to find deploy skill, got %+v", out)
	}
}

func TestByName(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "deploy", "---\nname: deploy\ndescription: ship it\n---\n")

	s, err := ByName(root, "DEPLOY")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "deploy" {
		t.Fatalf("expected deploy, got %q", s.Name)
	}

	if _, err := ByName(root, "missing"); err == nil {
		t.Fatal("expected error for missing skill")
	}
}
