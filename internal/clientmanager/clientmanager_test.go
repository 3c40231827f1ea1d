package clientmanager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/optionsbuilder"
	"github.com/lijiaxing1997/agentbridge/internal/sessionrepo"
)

type fakeSDKClient struct {
	disconnects int
}

func (f *fakeSDKClient) Connect(ctx context.Context, opts agentsdk.Options) error { return nil }
func (f *fakeSDKClient) Query(ctx context.Context, blocks []agentsdk.ContentBlock) (<-chan agentsdk.RawMessage, <-chan error) {
	out := make(chan agentsdk.RawMessage)
	errc := make(chan error)
	close(out)
	return out, errc
}
func (f *fakeSDKClient) Interrupt(ctx context.Context) error  { return nil }
func (f *fakeSDKClient) Disconnect(ctx context.Context) error { f.disconnects++; return nil }
func (f *fakeSDKClient) GetServerInfo(ctx context.Context) (agentsdk.ServerInfo, error) {
	return agentsdk.ServerInfo{}, nil
}

func newTestManager(t *testing.T) (*Manager, *sessionrepo.Repo) {
	t.Helper()
	repo, err := sessionrepo.Open(filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })

	builder := optionsbuilder.New(filepath.Join(t.TempDir(), "missing-settings.json"), nil, "", nil)
	factory := func() agentsdk.Client { return &fakeSDKClient{} }
	return New(factory, builder, nil, repo, nil, nil), repo
}

func TestGetOrConnectReusesRunningActorForSameDirectory(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a1, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/home/u1/project"})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/home/u1/project"})
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Fatal("expected the same actor instance to be reused")
	}
}

func TestGetOrConnectRestartsOnDirectoryChange(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a1, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/a"})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/b"})
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Fatal("expected a new actor after a directory change")
	}
	if a1.Running() {
		t.Fatal("expected the stale actor to have been stopped")
	}
}

func TestGetOrConnectPersistsSessionRow(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()

	if _, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/a", SessionID: "sess-1"}); err != nil {
		t.Fatal(err)
	}
	rec, err := repo.GetByUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.SessionID != "sess-1" || rec.Directory != "/a" {
		t.Fatalf("expected persisted session row, got %+v", rec)
	}
}

func TestDisconnectRemovesFromMap(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/a"})
	if err != nil {
		t.Fatal(err)
	}
	m.Disconnect("u1")
	if a.Running() {
		t.Fatal("expected actor stopped after Disconnect")
	}
	if cmds := m.GetAvailableCommands("u1"); cmds != nil {
		t.Fatal("expected no actor tracked for u1 after Disconnect")
	}
}

func TestOnActorExitSelfRemovesFromMap(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/a"}); err != nil {
		t.Fatal(err)
	}
	m.mu.Lock()
	e := m.actors["u1"]
	m.mu.Unlock()
	e.actor.Stop()

	m.mu.Lock()
	_, stillTracked := m.actors["u1"]
	m.mu.Unlock()
	if stillTracked {
		t.Fatal("expected on_exit to self-remove the actor from the map")
	}
}

func TestDisconnectAllStopsEveryActor(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a1, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u1", Directory: "/a"})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := m.GetOrConnect(ctx, GetOrConnectParams{UserID: "u2", Directory: "/b"})
	if err != nil {
		t.Fatal(err)
	}
	m.DisconnectAll()
	if a1.Running() || a2.Running() {
		t.Fatal("expected DisconnectAll to stop every tracked actor")
	}
}
