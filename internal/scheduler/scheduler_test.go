package scheduler

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lijiaxing1997/agentbridge/internal/sessionindex"
	"github.com/lijiaxing1997/agentbridge/internal/sessionrepo"
)

// backdate reaches around sessionrepo's exported surface (which always
// stamps last_active = now on Upsert) via a second connection to the
// same database file, to simulate a row that has gone stale.
func backdate(dbPath, userID string, age time.Duration) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`UPDATE bot_sessions SET last_active = ? WHERE user_id = ?`,
		time.Now().Add(-age).Format("2006-01-02 15:04:05"), userID)
	return err
}

func TestRunSessionGCNowRemovesStaleRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bridge.db")
	repo, err := sessionrepo.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	if err := repo.Upsert("stale", "sess1", "/a", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByUser("stale"); err != nil {
		t.Fatal(err)
	}

	s, err := New(Options{Repo: repo, GCHorizonHours: 24})
	if err != nil {
		t.Fatal(err)
	}

	// backdate directly since Upsert always stamps "now"
	if err := backdate(dbPath, "stale", 48*time.Hour); err != nil {
		t.Fatal(err)
	}

	s.RunSessionGCNow()

	rec, err := repo.GetByUser("stale")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("expected stale row removed by session_gc")
	}
}

func TestRunFormatHealthNowIsSilentOnEmptyHistory(t *testing.T) {
	idx := sessionindex.New(t.TempDir())
	s, err := New(Options{Index: idx})
	if err != nil {
		t.Fatal(err)
	}
	// Should not panic on a missing history file.
	s.RunFormatHealthNow()
}

func TestNewRejectsNothingForEmptyOptions(t *testing.T) {
	if _, err := New(Options{}); err != nil {
		t.Fatalf("expected New to tolerate a fully empty Options, got %v", err)
	}
}
