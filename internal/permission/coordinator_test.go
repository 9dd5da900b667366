package permission

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// queue collects posted callbacks so tests control when they run.
type queue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *queue) post(fn func()) {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
}

func (q *queue) drain() int {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// scripted records the listener and lets the test fire callbacks.
type scripted struct {
	granted  bool
	listener Listener
	requests int
}

func (s *scripted) Granted() bool      { return s.granted }
func (s *scripted) Request(l Listener) { s.listener = l; s.requests++ }

func TestCoordinatorAlreadyGranted(t *testing.T) {
	host := &scripted{granted: true}
	grants := 0
	c := NewCoordinator(host, host, nil, func() { grants++ }, discardLogger())

	c.Start()
	c.Start()

	if c.State() != Granted {
		t.Errorf("expected granted, got %s", c.State())
	}
	if grants != 1 {
		t.Errorf("expected one grant callback, got %d", grants)
	}
	if host.requests != 0 {
		t.Errorf("expected no request, got %d", host.requests)
	}
}

func TestCoordinatorExplainThenGrant(t *testing.T) {
	host := &scripted{}
	q := &queue{}
	grants := 0
	c := NewCoordinator(host, host, q.post, func() { grants++ }, discardLogger())

	c.Start()
	if host.requests != 1 || c.State() != Unrequested {
		t.Fatalf("expected one pending request, state %s", c.State())
	}

	host.listener.OnExplanationNeeded([]string{Location})
	if c.State() != Unrequested {
		t.Error("state changed before the callback was drained")
	}
	q.drain()
	if c.State() != Explaining {
		t.Errorf("expected explaining, got %s", c.State())
	}

	host.listener.OnPermissionResult(true)
	q.drain()
	if c.State() != Granted || !c.Granted() || grants != 1 {
		t.Errorf("expected granted once, got %s (%d grants)", c.State(), grants)
	}
}

func TestCoordinatorDenied(t *testing.T) {
	host := &scripted{}
	q := &queue{}
	grants := 0
	c := NewCoordinator(host, host, q.post, func() { grants++ }, discardLogger())

	c.Start()
	host.listener.OnPermissionResult(false)
	q.drain()

	if c.State() != Denied || c.Granted() {
		t.Errorf("expected denied, got %s", c.State())
	}
	if grants != 0 {
		t.Errorf("expected no grant callback, got %d", grants)
	}

	// A late result must not flip a final state.
	host.listener.OnPermissionResult(true)
	q.drain()
	if c.State() != Denied || grants != 0 {
		t.Errorf("final state changed to %s", c.State())
	}
}

func TestStaticRequester(t *testing.T) {
	for _, allow := range []bool{true, false} {
		s := Static{Allow: allow}
		if s.Granted() != allow {
			t.Errorf("Granted() = %v", s.Granted())
		}

		done := make(chan bool, 1)
		s.Request(resultFunc(func(granted bool) { done <- granted }))
		select {
		case got := <-done:
			if got != allow {
				t.Errorf("result %v, want %v", got, allow)
			}
		case <-time.After(time.Second):
			t.Fatal("no result")
		}
	}
}

type resultFunc func(bool)

func (f resultFunc) OnExplanationNeeded([]string) {}
func (f resultFunc) OnPermissionResult(g bool)    { f(g) }

type recordingListener struct {
	explained chan []string
	result    chan bool
}

func (r *recordingListener) OnExplanationNeeded(p []string) { r.explained <- p }
func (r *recordingListener) OnPermissionResult(g bool)      { r.result <- g }

func TestPromptRemembersGrant(t *testing.T) {
	grantFile := filepath.Join(t.TempDir(), "state", "location.granted")
	var out bytes.Buffer
	p := &Prompt{In: strings.NewReader("yes\n"), Out: &out, GrantFile: grantFile}

	if p.Granted() {
		t.Fatal("fresh prompt should not be granted")
	}

	l := &recordingListener{explained: make(chan []string, 1), result: make(chan bool, 1)}
	p.Request(l)

	select {
	case perms := <-l.explained:
		if len(perms) != 1 || perms[0] != Location {
			t.Errorf("unexpected permissions %v", perms)
		}
	case <-time.After(time.Second):
		t.Fatal("no explanation callback")
	}
	select {
	case granted := <-l.result:
		if !granted {
			t.Error("expected grant")
		}
	case <-time.After(time.Second):
		t.Fatal("no result callback")
	}

	if !p.Granted() {
		t.Error("grant was not remembered")
	}
	if !strings.Contains(out.String(), "[y/N]") {
		t.Errorf("prompt not written: %q", out.String())
	}

	if err := p.Revoke(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(grantFile); !os.IsNotExist(err) {
		t.Error("grant file still present after revoke")
	}
}

func TestPromptDefaultsToDeny(t *testing.T) {
	p := &Prompt{In: strings.NewReader(""), Out: io.Discard, GrantFile: filepath.Join(t.TempDir(), "g")}
	l := &recordingListener{explained: make(chan []string, 1), result: make(chan bool, 1)}
	p.Request(l)

	select {
	case granted := <-l.result:
		if granted {
			t.Error("empty answer must deny")
		}
	case <-time.After(time.Second):
		t.Fatal("no result callback")
	}
	if p.Granted() {
		t.Error("denial must not be remembered")
	}
}

func TestNewHost(t *testing.T) {
	tests := []struct {
		mode    string
		granted bool
		wantErr bool
	}{
		{"allow", true, false},
		{"deny", false, false},
		{"prompt", false, false},
		{"sometimes", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			host, err := NewHost(tt.mode, filepath.Join(t.TempDir(), "grant"), strings.NewReader(""), io.Discard)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewHost accepted an unknown mode")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHost: %v", err)
			}
			if host.Granted() != tt.granted {
				t.Fatalf("Granted = %v, want %v", host.Granted(), tt.granted)
			}
		})
	}
}
