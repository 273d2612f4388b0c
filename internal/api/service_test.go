package api_test

import (
	"context"
	"os"
	"path/filepath"
	"net"
	"testing"
	"time"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/backend"
	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/chats"
	"github.com/matheus3301/wgram/internal/history"
	"github.com/matheus3301/wgram/internal/notify"
	"github.com/matheus3301/wgram/internal/store"
	"github.com/matheus3301/wgram/internal/tui/client"
	"github.com/matheus3301/wgram/internal/users"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// startDaemon wires a loopback backend, the projections and the service on a
// Unix socket, and returns a connected client.
func startDaemon(t *testing.T) *client.Client {
	t.Helper()
	// Use /tmp for short socket paths (macOS 104-char limit).
	tmpDir, err := os.MkdirTemp("/tmp", "wgram-api-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	db, err := store.Open(filepath.Join(tmpDir, "wgram.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	seedChat(t, db)

	logger := zap.NewNop()
	b := bus.New()
	local := backend.New(db, nil, nil, logger)
	proj := chats.New(local, logger)
	hist := history.New(local, logger, 20)
	dir := users.New(local)
	agg := notify.New(local, proj, dir, notify.NewBusPresenter(b, logger), logger)
	authn := auth.NewAuthenticator(local, auth.NewMachine(b), logger)
	relay := api.NewRelay(proj, hist, b)

	ctx := context.Background()
	proj.Start(ctx)
	hist.Start(ctx)
	dir.Start(ctx)
	agg.Start(ctx)
	if err := local.Start(ctx); err != nil {
		t.Fatal(err)
	}
	authn.Start(ctx)
	relay.Start(ctx)
	t.Cleanup(func() {
		relay.Stop()
		authn.Stop()
		agg.Stop()
		dir.Stop()
		hist.Stop()
		proj.Stop()
		local.Stop()
	})

	svc := api.NewService("test", "loopback", api.Components{
		Client:  local,
		Chats:   proj,
		History: hist,
		Notify:  agg,
		Auth:    authn,
		Users:   dir,
	}, b, logger)

	socketPath := filepath.Join(tmpDir, "d.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer()
	api.RegisterProjectionServer(srv, svc)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	c, err := client.New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedChat(t *testing.T, db *store.DB) {
	t.Helper()
	if _, err := db.UpsertContact(&store.Contact{JID: "ana@s", Name: "Ana"}); err != nil {
		t.Fatal(err)
	}
	chatID, _, err := db.EnsureChat("ana@s", "private", "")
	if err != nil {
		t.Fatal(err)
	}
	for i, body := range []string{"hello there", "how are you"} {
		m := store.Message{ChatID: chatID, RemoteID: body, Body: body, Timestamp: int64(1000 * (i + 1))}
		if _, err := db.UpsertMessage(&m); err != nil {
			t.Fatal(err)
		}
		if _, err := db.TouchChat(chatID, m.ID, m.Timestamp); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProjectionServiceOverUnixSocket(t *testing.T) {
	c := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := c.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if st.Session != "test" || st.Backend != "loopback" {
		t.Errorf("status = %+v", st)
	}

	list, err := c.ListChats(ctx, &api.ListChatsRequest{Limit: 10, Load: true})
	if err != nil {
		t.Fatalf("ListChats error = %v", err)
	}
	if len(list.Chats) != 1 {
		t.Fatalf("got %d chats, want 1", len(list.Chats))
	}
	chat := list.Chats[0]
	if chat.Title != "Ana" || chat.LastText != "how are you" {
		t.Errorf("chat = %q / %q, want Ana / how are you", chat.Title, chat.LastText)
	}

	page, err := c.OpenChat(ctx, &api.OpenChatRequest{ChatID: chat.ID})
	if err != nil {
		t.Fatalf("OpenChat error = %v", err)
	}
	if len(page.Messages) != 2 || page.Messages[0].Text != "how are you" {
		t.Fatalf("history = %+v", page.Messages)
	}
	decoded, err := page.Messages[1].Decode()
	if err != nil || decoded.Content == nil || decoded.Content.ContentType() != "text" {
		t.Errorf("decoded = %+v, %v", decoded, err)
	}

	sent, err := c.SendText(ctx, &api.SendTextRequest{ChatID: chat.ID, Text: "fine", Wait: true})
	if err != nil {
		t.Fatalf("SendText error = %v", err)
	}
	if sent.Message == nil || sent.Message.Text != "fine" || sent.Message.IsPending() {
		t.Errorf("sent = %+v", sent.Message)
	}

	found, err := c.Search(ctx, &api.SearchRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("Search error = %v", err)
	}
	if found.Total != 1 || found.Hits[0].Message.Text != "hello there" {
		t.Errorf("search = %+v", found)
	}
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	c := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"history before open", func() error {
			_, err := c.GetHistory(ctx, &api.HistoryRequest{})
			return err
		}, codes.FailedPrecondition},
		{"open unknown chat", func() error {
			_, err := c.OpenChat(ctx, &api.OpenChatRequest{ChatID: 999})
			return err
		}, codes.NotFound},
		{"empty search", func() error {
			_, err := c.Search(ctx, &api.SearchRequest{Query: " "})
			return err
		}, codes.InvalidArgument},
		{"qr in loopback", func() error {
			_, err := c.Authenticate(ctx, &api.AuthRequest{QR: true})
			return err
		}, codes.InvalidArgument},
		{"unknown notification group", func() error {
			return c.MarkNotificationsRead(ctx, &api.MarkNotificationsRequest{GroupID: 42})
		}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grpcstatus.Code(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthenticateLoopbackFlow(t *testing.T) {
	c := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	steps := []struct {
		req  api.AuthRequest
		want auth.State
	}{
		{api.AuthRequest{LogOut: true}, auth.WaitPhoneNumber},
		{api.AuthRequest{PhoneNumber: "+15551234567"}, auth.WaitCode},
		{api.AuthRequest{Code: "12345"}, auth.Authorized},
	}
	for _, step := range steps {
		st, err := c.Authenticate(ctx, &step.req)
		if err != nil {
			t.Fatalf("Authenticate(%+v) error = %v", step.req, err)
		}
		if st.State != step.want {
			t.Errorf("after %+v state = %s, want %s", step.req, st.State, step.want)
		}
	}
}

func TestWatchStreamsHistoryChanges(t *testing.T) {
	c := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	list, err := c.ListChats(ctx, &api.ListChatsRequest{Load: true})
	if err != nil || len(list.Chats) == 0 {
		t.Fatalf("ListChats = %+v, %v", list, err)
	}
	w, err := c.Watch(ctx, &api.WatchRequest{Prefixes: []string{"history."}})
	if err != nil {
		t.Fatal(err)
	}
	// The stream is live once the server has subscribed; give it a moment.
	time.Sleep(50 * time.Millisecond)

	if _, err := c.OpenChat(ctx, &api.OpenChatRequest{ChatID: list.Chats[0].ID}); err != nil {
		t.Fatal(err)
	}
	evt, err := w.Recv()
	if err != nil {
		t.Fatalf("Recv error = %v", err)
	}
	if evt.Kind != bus.KindHistoryChanged || evt.Session != "test" || evt.ID == "" {
		t.Errorf("event = %+v", evt)
	}
}
