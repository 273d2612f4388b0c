package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/config"
	"github.com/matheus3301/wgram/internal/lock"
	"github.com/matheus3301/wgram/internal/session"
	"github.com/matheus3301/wgram/internal/store"
	"github.com/matheus3301/wgram/internal/tui/client"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func loopbackParams(t *testing.T) Params {
	t.Helper()
	// Use /tmp for short socket paths (macOS 104-char limit).
	tmpDir, err := os.MkdirTemp("/tmp", "wgram-d-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	t.Setenv(session.HomeEnv, tmpDir)

	cfg := config.Default()
	cfg.Backend = config.BackendLoopback
	cfg.LogLevel = "warn"
	return Params{SessionName: "test", SocketPath: filepath.Join(tmpDir, "d.sock"), Config: cfg}
}

func seedStore(t *testing.T, p Params) {
	t.Helper()
	if err := session.EnsureDir(p.SessionName); err != nil {
		t.Fatal(err)
	}
	db, err := store.Open(session.StoreDBPath(p.SessionName))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	for i, jid := range []string{"a@s", "b@s"} {
		id, _, err := db.EnsureChat(jid, "private", "")
		if err != nil {
			t.Fatal(err)
		}
		m := store.Message{ChatID: id, RemoteID: jid + "/1", Body: "hi " + jid, Timestamp: int64(1000 * (i + 1))}
		if _, err := db.UpsertMessage(&m); err != nil {
			t.Fatal(err)
		}
		if _, err := db.TouchChat(id, m.ID, m.Timestamp); err != nil {
			t.Fatal(err)
		}
	}
}

func dial(t *testing.T, socketPath string) *client.Client {
	t.Helper()
	c, err := client.New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDaemonLifecycle(t *testing.T) {
	p := loopbackParams(t)
	seedStore(t, p)

	app := fxtest.New(t, Module(p))
	app.RequireStart()
	defer app.RequireStop()

	c := dial(t, p.SocketPath)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Loopback authorizes on start and the warmup loads every chat.
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := c.GetStatus(ctx)
		if err != nil {
			t.Fatalf("GetStatus error = %v", err)
		}
		if st.Auth.State == auth.Authorized && st.ChatCount == 2 {
			if st.Session != "test" || st.Backend != config.BackendLoopback {
				t.Errorf("status = %+v", st)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status = %+v, want AUTHORIZED with 2 chats", st)
		}
		time.Sleep(20 * time.Millisecond)
	}

	list, err := c.ListChats(ctx, &api.ListChatsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Chats) != 2 || list.Chats[0].Title != "b@s" {
		t.Errorf("chats = %+v, want b@s first", list.Chats)
	}
}

// TestStoreSurvivesRestart verifies a message sent in one daemon run is in
// the history of the next.
func TestStoreSurvivesRestart(t *testing.T) {
	p := loopbackParams(t)
	seedStore(t, p)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	app := fxtest.New(t, Module(p))
	app.RequireStart()
	c := dial(t, p.SocketPath)
	list, err := c.ListChats(ctx, &api.ListChatsRequest{Load: true})
	if err != nil || len(list.Chats) == 0 {
		t.Fatalf("ListChats = %+v, %v", list, err)
	}
	chatID := list.Chats[0].ID
	if _, err := c.SendText(ctx, &api.SendTextRequest{ChatID: chatID, Text: "persisted", Wait: true}); err != nil {
		t.Fatalf("SendText error = %v", err)
	}
	app.RequireStop()

	app = fxtest.New(t, Module(p))
	app.RequireStart()
	defer app.RequireStop()
	c = dial(t, p.SocketPath)
	page, err := c.OpenChat(ctx, &api.OpenChatRequest{ChatID: chatID})
	if err != nil {
		t.Fatalf("OpenChat error = %v", err)
	}
	if len(page.Messages) == 0 || page.Messages[0].Text != "persisted" {
		t.Errorf("history after restart = %+v", page.Messages)
	}
}

func TestSecondDaemonRefused(t *testing.T) {
	p := loopbackParams(t)
	if err := session.EnsureDir(p.SessionName); err != nil {
		t.Fatal(err)
	}
	held, err := lock.Acquire(session.Dir(p.SessionName), config.BackendLoopback)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = held.Release() }()

	app := fx.New(Module(p), fx.NopLogger)
	err = app.Err()
	var lockErr *lock.LockHeldError
	if !errors.As(err, &lockErr) {
		t.Fatalf("fx.New() error = %v, want LockHeldError", err)
	}
	if lockErr.Holder.PID != os.Getpid() {
		t.Errorf("holder pid = %d, want %d", lockErr.Holder.PID, os.Getpid())
	}
}

// TestNewServerUsesSocketOverride verifies NewServer accepts Params and binds
// the override path.
// Regression: a bare `string` param caused fx to fail with "missing type: string".
func TestNewServerUsesSocketOverride(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "wgram-fx-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	p := Params{SessionName: "fxtest", SocketPath: socketPath}
	srv, err := NewServer(p, zap.NewNop(), api.NewService("fxtest", config.BackendLoopback, api.Components{}, nil, nil))
	if err != nil {
		t.Fatalf("NewServer() with Params failed: %v", err)
	}

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("socket mode = %o, want 0600", info.Mode().Perm())
	}

	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket should be removed after Stop, stat err = %v", err)
	}
}
