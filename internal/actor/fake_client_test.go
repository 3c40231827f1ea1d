package actor

import (
	"context"
	"sync"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
)

// fakeClient is a deterministic in-memory agentsdk.Client for actor
// tests: each call to Query pops the next scripted response off a
// queue so tests can script multi-turn exchanges without a real
// subprocess.
type fakeClient struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	serverInfo  agentsdk.ServerInfo
	serverErr   error
	disconnects int
	interrupts  int
	responses   [][]agentsdk.RawMessage
	queryErr    error
}

func (f *fakeClient) Connect(ctx context.Context, opts agentsdk.Options) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Query(ctx context.Context, blocks []agentsdk.ContentBlock) (<-chan agentsdk.RawMessage, <-chan error) {
	out := make(chan agentsdk.RawMessage, 16)
	errc := make(chan error, 1)

	f.mu.Lock()
	var msgs []agentsdk.RawMessage
	if len(f.responses) > 0 {
		msgs = f.responses[0]
		f.responses = f.responses[1:]
	}
	qerr := f.queryErr
	f.mu.Unlock()

	go func() {
		defer close(out)
		if qerr != nil {
			errc <- qerr
			return
		}
		for _, m := range msgs {
			out <- m
		}
	}()
	return out, errc
}

func (f *fakeClient) Interrupt(ctx context.Context) error {
	f.mu.Lock()
	f.interrupts++
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.disconnects++
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) GetServerInfo(ctx context.Context) (agentsdk.ServerInfo, error) {
	if f.serverErr != nil {
		return agentsdk.ServerInfo{}, f.serverErr
	}
	return f.serverInfo, nil
}

func cost(v float64) *float64 { return &v }
