package store

// AddNotification records an active notification and returns its id.
func (db *DB) AddNotification(chatID, messageID, date int64, silent bool) (int64, error) {
	res, err := db.Exec(`INSERT INTO notifications (chat_id, message_id, date, silent) VALUES (?, ?, ?, ?)`,
		chatID, messageID, date, silent)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ChatNotifications returns the active notifications of a chat, oldest first.
func (db *DB) ChatNotifications(chatID int64) ([]Notification, error) {
	return db.queryNotifications(`
		SELECT id, chat_id, message_id, date, silent FROM notifications
		WHERE chat_id = ? ORDER BY id`, chatID)
}

// ActiveNotifications returns every active notification ordered by chat then id.
func (db *DB) ActiveNotifications() ([]Notification, error) {
	return db.queryNotifications(`
		SELECT id, chat_id, message_id, date, silent FROM notifications
		ORDER BY chat_id, id`)
}

// RemoveNotifications drops the notifications of a chat whose message id is
// <= upTo, or whose message id is listed in messageIDs. It returns the removed
// notification ids.
func (db *DB) RemoveNotifications(chatID, upTo int64, messageIDs []int64) ([]int64, error) {
	q := `DELETE FROM notifications WHERE chat_id = ? AND (message_id <= ?`
	args := []any{chatID, upTo}
	if len(messageIDs) > 0 {
		in, inArgs := inClause(` OR message_id IN `, messageIDs)
		q += in
		args = append(args, inArgs...)
	}
	q += `) RETURNING id`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var removed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

func (db *DB) queryNotifications(q string, args ...any) ([]Notification, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ChatID, &n.MessageID, &n.Date, &n.Silent); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
