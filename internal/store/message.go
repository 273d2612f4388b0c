package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const messageColumns = `id, chat_id, remote_id, sender_jid, sender_id, sender_name, body, content,
	from_me, state, error_code, error_message, reply_to_id, timestamp, edit_date`

func scanMessage(r rowScanner) (Message, error) {
	var m Message
	err := r.Scan(&m.ID, &m.ChatID, &m.RemoteID, &m.SenderJID, &m.SenderID, &m.SenderName,
		&m.Body, &m.Content, &m.FromMe, &m.State, &m.ErrorCode, &m.ErrorMessage,
		&m.ReplyToID, &m.Timestamp, &m.EditDate)
	return m, err
}

// UpsertMessage inserts a message or, when (chat_id, remote_id) already
// exists, refreshes its content. It sets m.ID and reports whether a new row was
// created.
func (db *DB) UpsertMessage(m *Message) (bool, error) {
	if m.RemoteID == "" {
		return false, errors.New("upsert message: empty remote id")
	}
	var id int64
	err := db.QueryRow(`SELECT id FROM messages WHERE chat_id = ? AND remote_id = ?`, m.ChatID, m.RemoteID).Scan(&id)
	switch {
	case err == nil:
		_, err = db.Exec(`
			UPDATE messages SET sender_name = ?, body = ?, content = ?, state = ?
			WHERE id = ?`,
			m.SenderName, m.Body, m.Content, m.State, id)
		if err != nil {
			return false, fmt.Errorf("update message %d: %w", id, err)
		}
		m.ID = id
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}
	if err := db.insertMessage(db.DB, m); err != nil {
		return false, err
	}
	return true, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (db *DB) insertMessage(x execer, m *Message) error {
	res, err := x.Exec(`
		INSERT INTO messages (chat_id, remote_id, sender_jid, sender_id, sender_name, body, content,
			from_me, state, error_code, error_message, reply_to_id, timestamp, edit_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ChatID, m.RemoteID, m.SenderJID, m.SenderID, m.SenderName, m.Body, m.Content,
		m.FromMe, m.State, m.ErrorCode, m.ErrorMessage, m.ReplyToID, m.Timestamp, m.EditDate,
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// ConfirmMessage replaces a pending row with a confirmed copy carrying the
// server id. The confirmed row gets a fresh, larger id.
func (db *DB) ConfirmMessage(pendingID int64, remoteID string, ts int64) (*Message, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanMessage(tx.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, pendingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, pendingID); err != nil {
		return nil, err
	}
	m.RemoteID = remoteID
	m.State = StateAcknowledged
	m.ErrorCode, m.ErrorMessage = 0, ""
	if ts > 0 {
		m.Timestamp = ts
	}
	if err := db.insertMessage(tx, &m); err != nil {
		return nil, err
	}
	return &m, tx.Commit()
}

// MarkMessageFailed records a send failure on a pending message.
func (db *DB) MarkMessageFailed(id int64, code int, msg string) error {
	_, err := db.Exec(`UPDATE messages SET state = ?, error_code = ?, error_message = ? WHERE id = ?`,
		StateFailed, code, msg, id)
	return err
}

// UpdateMessageContent replaces body and content of the message identified by
// its remote id. It returns nil when the message is unknown.
func (db *DB) UpdateMessageContent(chatID int64, remoteID, body, content string, editDate int64) (*Message, error) {
	res, err := db.Exec(`
		UPDATE messages SET body = ?, content = ?, edit_date = ?
		WHERE chat_id = ? AND remote_id = ?`,
		body, content, editDate, chatID, remoteID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return db.GetMessageByRemoteID(chatID, remoteID)
}

// GetMessage returns a message by id, or nil if missing.
func (db *DB) GetMessage(id int64) (*Message, error) {
	return db.getMessage(`WHERE id = ?`, id)
}

// GetMessageByRemoteID returns a message by its server id, or nil if missing.
func (db *DB) GetMessageByRemoteID(chatID int64, remoteID string) (*Message, error) {
	return db.getMessage(`WHERE chat_id = ? AND remote_id = ?`, chatID, remoteID)
}

// LatestMessage returns the newest message of a chat, or nil if it has none.
func (db *DB) LatestMessage(chatID int64) (*Message, error) {
	return db.getMessage(`WHERE chat_id = ? ORDER BY id DESC LIMIT 1`, chatID)
}

func (db *DB) getMessage(where string, args ...any) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`SELECT `+messageColumns+` FROM messages `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns up to limit messages of a chat with id < beforeID,
// newest first. beforeID <= 0 starts at the newest message.
func (db *DB) ListMessages(chatID, beforeID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeID <= 0 {
		beforeID = 1<<63 - 1
	}
	return db.queryMessages(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = ? AND id < ?
		ORDER BY id DESC
		LIMIT ?`, chatID, beforeID, limit)
}

// ListNewer returns up to limit messages of a chat with id >= fromID, oldest
// first.
func (db *DB) ListNewer(chatID, fromID int64, limit int) ([]Message, error) {
	return db.queryMessages(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = ? AND id >= ?
		ORDER BY id ASC
		LIMIT ?`, chatID, fromID, limit)
}

// CountMessages returns the number of messages stored for a chat.
func (db *DB) CountMessages(chatID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&n)
	return n, err
}

// DeleteMessages removes the given messages of a chat and returns the ids
// that actually existed.
func (db *DB) DeleteMessages(chatID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args := inClause(`DELETE FROM messages WHERE chat_id = ? AND id IN `, ids)
	q += ` RETURNING id`
	rows, err := db.Query(q, append([]any{chatID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var deleted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

func (db *DB) queryMessages(q string, args ...any) ([]Message, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
