package store

import (
	"path/filepath"
	"slices"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testChat(t *testing.T, db *DB, jid string) int64 {
	t.Helper()
	id, _, err := db.EnsureChat(jid, "private", "")
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func insert(t *testing.T, db *DB, m Message) Message {
	t.Helper()
	if _, err := db.UpsertMessage(&m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}

	v, dirty, err := db.SchemaVersion()
	if err != nil || v != 2 || dirty {
		t.Errorf("SchemaVersion() = %d, %v, %v; want 2, false, nil", v, dirty, err)
	}
}

// Regression: the FTS triggers must keep messages_fts in step with updates
// and deletes, not only inserts.
func TestFTSFollowsUpdatesAndDeletes(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "c@s")
	m := insert(t, db, Message{ChatID: chat, RemoteID: "r1", Body: "hello", Timestamp: 1})

	count := func(q string) int {
		t.Helper()
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH ?`, q).Scan(&n); err != nil {
			t.Fatalf("FTS5 query failed: %v", err)
		}
		return n
	}
	if got := count("hello"); got != 1 {
		t.Fatalf("hello count = %d, want 1", got)
	}

	if _, err := db.UpdateMessageContent(chat, "r1", "goodbye", "", 5); err != nil {
		t.Fatal(err)
	}
	if count("hello") != 0 || count("goodbye") != 1 {
		t.Error("FTS not updated after edit")
	}

	if _, err := db.DeleteMessages(chat, []int64{m.ID}); err != nil {
		t.Fatal(err)
	}
	if got := count("goodbye"); got != 0 {
		t.Errorf("goodbye count after delete = %d, want 0", got)
	}
}

func TestEnsureChat(t *testing.T) {
	db := testDB(t)

	id, created, err := db.EnsureChat("a@s", "private", "A")
	if err != nil || !created {
		t.Fatalf("first EnsureChat = %d, %v, %v", id, created, err)
	}
	again, created, err := db.EnsureChat("a@s", "private", "ignored")
	if err != nil || created || again != id {
		t.Fatalf("second EnsureChat = %d, %v, %v; want %d, false", again, created, err, id)
	}

	c, err := db.GetChat(id)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Title != "A" || c.JID != "a@s" {
		t.Errorf("got %+v, want A", c)
	}

	// Non-existent.
	c, err = db.GetChatByJID("missing@s")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing chat")
	}
}

func TestChatTitleFallsBackToContact(t *testing.T) {
	db := testDB(t)
	id := testChat(t, db, "j@s")
	if _, err := db.UpsertContact(&Contact{JID: "j@s", PushName: "Johnny"}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetChat(id)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Johnny" {
		t.Errorf("title = %q, want Johnny", c.Title)
	}

	// A saved name wins over the push name.
	if _, err := db.UpsertContact(&Contact{JID: "j@s", Name: "John Doe"}); err != nil {
		t.Fatal(err)
	}
	if c, _ = db.GetChat(id); c.Title != "John Doe" {
		t.Errorf("title = %q, want John Doe", c.Title)
	}
}

func TestTouchChatOnlyMovesForward(t *testing.T) {
	db := testDB(t)
	id := testChat(t, db, "c@s")

	tests := []struct {
		msgID, at int64
		moved     bool
	}{
		{1, 100, true},
		{2, 50, false},
		{3, 100, true},
		{4, 200, true},
	}
	for _, tt := range tests {
		moved, err := db.TouchChat(id, tt.msgID, tt.at)
		if err != nil {
			t.Fatal(err)
		}
		if moved != tt.moved {
			t.Errorf("TouchChat(%d, %d) = %v, want %v", tt.msgID, tt.at, moved, tt.moved)
		}
	}
	c, _ := db.GetChat(id)
	if c.LastMessageID != 4 || c.LastMessageAt != 200 {
		t.Errorf("last = (%d, %d), want (4, 200)", c.LastMessageID, c.LastMessageAt)
	}
}

func TestAnnouncement(t *testing.T) {
	db := testDB(t)
	a := testChat(t, db, "a@s")
	b := testChat(t, db, "b@s")
	if _, err := db.TouchChat(b, 1, 10); err != nil {
		t.Fatal(err)
	}

	next, err := db.NextUnannounced(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(next) != 1 || next[0].ID != b {
		t.Fatalf("first batch = %+v, want chat %d", next, b)
	}
	if err := db.MarkAnnounced([]int64{b}); err != nil {
		t.Fatal(err)
	}
	next, _ = db.NextUnannounced(10)
	if len(next) != 1 || next[0].ID != a {
		t.Fatalf("second batch = %+v, want chat %d", next, a)
	}
	if err := db.MarkAnnounced([]int64{a}); err != nil {
		t.Fatal(err)
	}
	if next, _ = db.NextUnannounced(10); len(next) != 0 {
		t.Fatalf("expected no unannounced chats, got %d", len(next))
	}

	if err := db.ResetAnnounced(); err != nil {
		t.Fatal(err)
	}
	if next, _ = db.NextUnannounced(10); len(next) != 2 {
		t.Errorf("after reset got %d chats, want 2", len(next))
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "chat@s")

	msg := &Message{ChatID: chat, RemoteID: "msg1", Body: "hello", Timestamp: 1000}
	if created, err := db.UpsertMessage(msg); err != nil || !created {
		t.Fatalf("first upsert = %v, %v", created, err)
	}
	first := msg.ID
	// Upsert again should not create duplicate.
	msg.Body = "hello updated"
	if created, err := db.UpsertMessage(msg); err != nil || created {
		t.Fatalf("second upsert = %v, %v", created, err)
	}
	if msg.ID != first {
		t.Errorf("id changed from %d to %d", first, msg.ID)
	}

	msgs, err := db.ListMessages(chat, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert failed)", len(msgs))
	}
	if msgs[0].Body != "hello updated" {
		t.Errorf("body = %q, want hello updated", msgs[0].Body)
	}
}

func TestListMessagesKeyset(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "c@s")
	var ids []int64
	for i := range 5 {
		m := insert(t, db, Message{ChatID: chat, RemoteID: string(rune('a' + i)), Timestamp: int64(i)})
		ids = append(ids, m.ID)
	}

	ids2 := func(ms []Message) []int64 {
		out := make([]int64, len(ms))
		for i, m := range ms {
			out[i] = m.ID
		}
		return out
	}

	page, err := db.ListMessages(chat, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids2(page), []int64{ids[4], ids[3]}; !slices.Equal(got, want) {
		t.Errorf("page 1 = %v, want %v", got, want)
	}
	page, _ = db.ListMessages(chat, ids[3], 10)
	if got, want := ids2(page), []int64{ids[2], ids[1], ids[0]}; !slices.Equal(got, want) {
		t.Errorf("page 2 = %v, want %v", got, want)
	}
	newer, _ := db.ListNewer(chat, ids[3], 10)
	if got, want := ids2(newer), []int64{ids[3], ids[4]}; !slices.Equal(got, want) {
		t.Errorf("newer = %v, want %v", got, want)
	}
}

func TestConfirmMessageReplacesPendingRow(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "c@s")
	pending := insert(t, db, Message{ChatID: chat, RemoteID: "local:1", Body: "hi", FromMe: true, State: StatePending, Timestamp: 5})

	confirmed, err := db.ConfirmMessage(pending.ID, "SERVER1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if confirmed.ID <= pending.ID {
		t.Errorf("confirmed id %d should be greater than pending id %d", confirmed.ID, pending.ID)
	}
	if confirmed.State != StateAcknowledged || confirmed.RemoteID != "SERVER1" || confirmed.Timestamp != 7 {
		t.Errorf("confirmed = %+v", confirmed)
	}
	if old, _ := db.GetMessage(pending.ID); old != nil {
		t.Error("pending row should be gone")
	}

	// Confirming a missing row is a no-op.
	if m, err := db.ConfirmMessage(pending.ID, "X", 0); err != nil || m != nil {
		t.Errorf("ConfirmMessage(missing) = %v, %v", m, err)
	}
}

func TestMarkInboxRead(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "c@s")
	var last int64
	for i := range 3 {
		m := insert(t, db, Message{ChatID: chat, RemoteID: string(rune('a' + i)), Timestamp: int64(i)})
		last = m.ID
		if _, err := db.IncrementUnread(chat); err != nil {
			t.Fatal(err)
		}
	}
	insert(t, db, Message{ChatID: chat, RemoteID: "mine", FromMe: true, Timestamp: 9})

	lastRead, unread, err := db.MarkInboxRead(chat, last-1)
	if err != nil {
		t.Fatal(err)
	}
	if lastRead != last-1 || unread != 1 {
		t.Errorf("MarkInboxRead = (%d, %d), want (%d, 1)", lastRead, unread, last-1)
	}

	// The marker never moves backwards.
	lastRead, unread, _ = db.MarkInboxRead(chat, 1)
	if lastRead != last-1 || unread != 1 {
		t.Errorf("backwards MarkInboxRead = (%d, %d)", lastRead, unread)
	}
}

func TestNotifications(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "c@s")
	for _, msgID := range []int64{10, 11, 12} {
		if _, err := db.AddNotification(chat, msgID, msgID*100, false); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := db.RemoveNotifications(chat, 10, []int64{12})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %d, want 2", len(removed))
	}
	left, _ := db.ChatNotifications(chat)
	if len(left) != 1 || left[0].MessageID != 11 {
		t.Errorf("left = %+v, want message 11", left)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "chat@s")
	other := testChat(t, db, "other@s")

	m1 := insert(t, db, Message{ChatID: chat, RemoteID: "m1", Body: "hello world", Timestamp: 1000})
	insert(t, db, Message{ChatID: chat, RemoteID: "m2", Body: "goodbye world", Timestamp: 2000})
	insert(t, db, Message{ChatID: other, RemoteID: "m3", Body: "hello there", Timestamp: 3000})

	results, err := db.SearchMessages("hello", chat, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Message.ID != m1.ID {
		t.Errorf("id = %d, want %d", results[0].Message.ID, m1.ID)
	}

	all, _ := db.SearchMessages("hello", 0, 10)
	if len(all) != 2 {
		t.Errorf("global search got %d results, want 2", len(all))
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)
	chat := testChat(t, db, "chat@s")

	if err := db.QueueOutbox("client1", chat, 1, `{"type":"text"}`); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].ClientMsgID != "client1" || pending[0].MessageID != 1 {
		t.Errorf("entry = %+v", pending[0])
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	// Interrupted sends are retried after a restart.
	if pending, _ = db.PendingOutbox(); len(pending) != 1 {
		t.Errorf("got %d pending while sending, want 1", len(pending))
	}
	if err := db.MarkOutboxSent("client1", "server1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
}

func TestContact(t *testing.T) {
	db := testDB(t)

	c, err := db.UpsertContact(&Contact{JID: "j@s", Name: "John", PushName: "Johnny"})
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.PushName != "Johnny" || c.ID == 0 {
		t.Fatalf("got %+v, want Johnny", c)
	}

	// Empty fields keep what is known.
	if _, err := db.UpsertContact(&Contact{JID: "j@s", Phone: "+1"}); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetContactByID(c.ID)
	if got.Name != "John" || got.Phone != "+1" {
		t.Errorf("got %+v", got)
	}

	id, err := db.EnsureContact("j@s")
	if err != nil || id != c.ID {
		t.Errorf("EnsureContact = %d, %v; want %d", id, err, c.ID)
	}
}

func TestOptionsAndSyncState(t *testing.T) {
	db := testDB(t)

	if v, _ := db.Option("notification_group_count_max", 3); v != 3 {
		t.Errorf("default option = %d, want 3", v)
	}
	if err := db.SetOption("notification_group_count_max", 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.Option("notification_group_count_max", 3); v != 5 {
		t.Errorf("option = %d, want 5", v)
	}

	if err := db.SetSyncState("history_synced_at", "42"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetSyncState("history_synced_at"); v != "42" {
		t.Errorf("sync state = %q, want 42", v)
	}
}
