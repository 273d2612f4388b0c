package store

// SearchMessages performs a full-text search on message bodies. chatID 0
// searches every chat.
func (db *DB) SearchMessages(query string, chatID int64, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.chat_id, m.remote_id, m.sender_jid, m.sender_id, m.sender_name, m.body,
		       m.content, m.from_me, m.state, m.error_code, m.error_message, m.reply_to_id,
		       m.timestamp, m.edit_date,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if chatID != 0 {
		q += " AND m.chat_id = ?"
		args = append(args, chatID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m := &r.Message
		if err := rows.Scan(
			&m.ID, &m.ChatID, &m.RemoteID, &m.SenderJID, &m.SenderID, &m.SenderName, &m.Body,
			&m.Content, &m.FromMe, &m.State, &m.ErrorCode, &m.ErrorMessage, &m.ReplyToID,
			&m.Timestamp, &m.EditDate, &r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
