package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const chatColumns = `c.id, c.jid, c.type,
	COALESCE(NULLIF(c.title,''), NULLIF(ct.name,''), NULLIF(ct.push_name,''), c.jid) AS display_title,
	c.last_message_id, c.last_message_at, c.last_read_inbox_id, c.last_read_outbox_id,
	c.unread_count, c.is_pinned, c.is_archived, c.muted_until, c.announced`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(r rowScanner) (Chat, error) {
	var c Chat
	err := r.Scan(&c.ID, &c.JID, &c.Type, &c.Title,
		&c.LastMessageID, &c.LastMessageAt, &c.LastReadInboxID, &c.LastReadOutboxID,
		&c.UnreadCount, &c.IsPinned, &c.IsArchived, &c.MutedUntil, &c.Announced)
	return c, err
}

// EnsureChat returns the id of the chat with the given JID, creating it if
// needed. created reports whether a row was inserted.
func (db *DB) EnsureChat(jid, typ, title string) (id int64, created bool, err error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO chats (jid, type, title, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(jid) DO NOTHING`,
		jid, typ, title, now)
	if err != nil {
		return 0, false, fmt.Errorf("insert chat %q: %w", jid, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		id, err = res.LastInsertId()
		return id, true, err
	}
	err = db.QueryRow(`SELECT id FROM chats WHERE jid = ?`, jid).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("lookup chat %q: %w", jid, err)
	}
	return id, false, nil
}

// SetChatTitle updates a chat title. Empty titles are ignored.
func (db *DB) SetChatTitle(id int64, title string) (bool, error) {
	if title == "" {
		return false, nil
	}
	res, err := db.Exec(`UPDATE chats SET title = ?, updated_at = ? WHERE id = ? AND title != ?`,
		title, time.Now().UnixMilli(), id, title)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// TouchChat records msgID as the chat's last message when it is newer than
// the current one.
func (db *DB) TouchChat(id, msgID, at int64) (bool, error) {
	res, err := db.Exec(`
		UPDATE chats SET last_message_id = ?, last_message_at = ?, updated_at = ?
		WHERE id = ? AND (last_message_at < ? OR (last_message_at = ? AND last_message_id < ?))`,
		msgID, at, time.Now().UnixMilli(), id, at, at, msgID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// RefreshLastMessage points the chat at its newest remaining message, used
// after deletions.
func (db *DB) RefreshLastMessage(id int64) (*Message, error) {
	m, err := db.LatestMessage(id)
	if err != nil {
		return nil, err
	}
	var msgID, at int64
	if m != nil {
		msgID, at = m.ID, m.Timestamp
	}
	_, err = db.Exec(`UPDATE chats SET last_message_id = ?, last_message_at = ?, updated_at = ? WHERE id = ?`,
		msgID, at, time.Now().UnixMilli(), id)
	return m, err
}

// ListChats returns chats sorted by last message timestamp descending.
// Titles fall back to the contact name and then the JID.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.queryChats(`
		SELECT `+chatColumns+`
		FROM chats c
		LEFT JOIN contacts ct ON c.jid = ct.jid
		ORDER BY c.last_message_at DESC, c.id DESC
		LIMIT ? OFFSET ?`, limit, offset)
}

// NextUnannounced returns up to limit chats not yet announced to the feed,
// most recently active first.
func (db *DB) NextUnannounced(limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.queryChats(`
		SELECT `+chatColumns+`
		FROM chats c
		LEFT JOIN contacts ct ON c.jid = ct.jid
		WHERE c.announced = 0
		ORDER BY c.last_message_at DESC, c.id DESC
		LIMIT ?`, limit)
}

// MarkAnnounced flags chats as announced.
func (db *DB) MarkAnnounced(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	q, args := inClause(`UPDATE chats SET announced = 1 WHERE id IN `, ids)
	_, err := db.Exec(q, args...)
	return err
}

// ResetAnnounced clears the announced flag so a new feed session sees every
// chat again.
func (db *DB) ResetAnnounced() error {
	_, err := db.Exec(`UPDATE chats SET announced = 0`)
	return err
}

// GetChat returns a single chat by id, or nil if missing.
func (db *DB) GetChat(id int64) (*Chat, error) {
	return db.getChat(`WHERE c.id = ?`, id)
}

// GetChatByJID returns a single chat by JID, or nil if missing.
func (db *DB) GetChatByJID(jid string) (*Chat, error) {
	return db.getChat(`WHERE c.jid = ?`, jid)
}

func (db *DB) getChat(where string, arg any) (*Chat, error) {
	row := db.QueryRow(`
		SELECT `+chatColumns+`
		FROM chats c
		LEFT JOIN contacts ct ON c.jid = ct.jid
		`+where, arg)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementUnread bumps the unread counter and returns the new value.
func (db *DB) IncrementUnread(id int64) (int, error) {
	var n int
	err := db.QueryRow(`UPDATE chats SET unread_count = unread_count + 1 WHERE id = ? RETURNING unread_count`, id).Scan(&n)
	return n, err
}

// MarkInboxRead advances the inbox read marker to upTo and recomputes the
// unread counter from the incoming messages after it. The marker never moves
// backwards.
func (db *DB) MarkInboxRead(id, upTo int64) (lastRead int64, unread int, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE chats SET last_read_inbox_id = MAX(last_read_inbox_id, ?) WHERE id = ?`, upTo, id); err != nil {
		return 0, 0, err
	}
	if err := tx.QueryRow(`SELECT last_read_inbox_id FROM chats WHERE id = ?`, id).Scan(&lastRead); err != nil {
		return 0, 0, err
	}
	if err := tx.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id = ? AND from_me = 0 AND id > ?`, id, lastRead).Scan(&unread); err != nil {
		return 0, 0, err
	}
	if _, err := tx.Exec(`UPDATE chats SET unread_count = ? WHERE id = ?`, unread, id); err != nil {
		return 0, 0, err
	}
	return lastRead, unread, tx.Commit()
}

// MarkOutboxRead advances the outbox read marker. It reports whether the
// marker moved.
func (db *DB) MarkOutboxRead(id, upTo int64) (bool, error) {
	res, err := db.Exec(`UPDATE chats SET last_read_outbox_id = ? WHERE id = ? AND last_read_outbox_id < ?`, upTo, id, upTo)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ChatCount returns the total number of chats.
func (db *DB) ChatCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

func (db *DB) queryChats(q string, args ...any) ([]Chat, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func inClause(prefix string, ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return prefix + "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}
