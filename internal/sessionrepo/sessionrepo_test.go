package sessionrepo

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.db")
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestUpsertAndGetByUser(t *testing.T) {
	r := openTestRepo(t)

	if err := r.Upsert("u1", "sess1", "/home/u1/project", "claude-3", []string{"beta-a"}); err != nil {
		t.Fatal(err)
	}

	rec, err := r.GetByUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.SessionID != "sess1" || rec.Directory != "/home/u1/project" || rec.Model != "claude-3" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Betas) != 1 || rec.Betas[0] != "beta-a" {
		t.Fatalf("expected betas round-trip, got %+v", rec.Betas)
	}
}

func TestUpsertReplacesWholeRow(t *testing.T) {
	r := openTestRepo(t)

	if err := r.Upsert("u1", "sess1", "/a", "model-a", []string{"b1"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Upsert("u1", "sess2", "/b", "", nil); err != nil {
		t.Fatal(err)
	}

	rec, err := r.GetByUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SessionID != "sess2" || rec.Directory != "/b" || rec.Model != "" || len(rec.Betas) != 0 {
		t.Fatalf("expected whole-row replace, got %+v", rec)
	}
}

func TestGetByUserMissing(t *testing.T) {
	r := openTestRepo(t)
	rec, err := r.GetByUser("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("expected nil for missing user, got %+v", rec)
	}
}

func TestDelete(t *testing.T) {
	r := openTestRepo(t)
	if err := r.Upsert("u1", "sess1", "/a", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete("u1"); err != nil {
		t.Fatal(err)
	}
	rec, err := r.GetByUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("expected record to be gone after delete")
	}
}

func TestCleanupExpired(t *testing.T) {
	r := openTestRepo(t)
	if err := r.Upsert("stale", "sess1", "/a", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.db.Exec(`UPDATE bot_sessions SET last_active = ? WHERE user_id = ?`,
		time.Now().Add(-48*time.Hour).Format("2006-01-02 15:04:05"), "stale"); err != nil {
		t.Fatal(err)
	}
	if err := r.Upsert("fresh", "sess2", "/b", "", nil); err != nil {
		t.Fatal(err)
	}

	n, err := r.CleanupExpired(24)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row cleaned up, got %d", n)
	}

	rec, err := r.GetByUser("fresh")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("expected fresh record to survive cleanup")
	}
}

func TestCurrentDirectory(t *testing.T) {
	r := openTestRepo(t)
	dir, err := r.GetCurrentDirectory("u1")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "" {
		t.Fatalf("expected empty directory for unknown user, got %q", dir)
	}

	if err := r.SetCurrentDirectory("u1", "/home/u1/project"); err != nil {
		t.Fatal(err)
	}
	dir, err = r.GetCurrentDirectory("u1")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/home/u1/project" {
		t.Fatalf("expected set directory, got %q", dir)
	}

	if err := r.SetCurrentDirectory("u1", "/home/u1/other"); err != nil {
		t.Fatal(err)
	}
	dir, err = r.GetCurrentDirectory("u1")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/home/u1/other" {
		t.Fatalf("expected updated directory, got %q", dir)
	}
}
