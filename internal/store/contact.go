package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const contactUpsert = `
	INSERT INTO contacts (jid, name, push_name, phone, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(jid) DO UPDATE SET
		name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
		push_name = CASE WHEN excluded.push_name != '' THEN excluded.push_name ELSE contacts.push_name END,
		phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE contacts.phone END,
		updated_at = excluded.updated_at`

// UpsertContact inserts or updates a contact and returns the stored row.
// Empty fields never overwrite known values.
func (db *DB) UpsertContact(c *Contact) (*Contact, error) {
	if _, err := db.Exec(contactUpsert, c.JID, c.Name, c.PushName, c.Phone, time.Now().UnixMilli()); err != nil {
		return nil, fmt.Errorf("upsert contact %q: %w", c.JID, err)
	}
	return db.GetContact(c.JID)
}

// BulkUpsertContacts inserts or updates multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.Exec(contactUpsert, c.JID, c.Name, c.PushName, c.Phone, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.JID, err)
		}
	}
	return tx.Commit()
}

// EnsureContact returns the id of the contact with the given JID, creating an
// empty row if needed.
func (db *DB) EnsureContact(jid string) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO contacts (jid, updated_at) VALUES (?, ?)
		ON CONFLICT(jid) DO UPDATE SET jid = excluded.jid
		RETURNING id`, jid, time.Now().UnixMilli()).Scan(&id)
	return id, err
}

// GetContact returns a contact by JID, or nil if missing.
func (db *DB) GetContact(jid string) (*Contact, error) {
	return db.getContact(`WHERE jid = ?`, jid)
}

// GetContactByID returns a contact by id, or nil if missing.
func (db *DB) GetContactByID(id int64) (*Contact, error) {
	return db.getContact(`WHERE id = ?`, id)
}

func (db *DB) getContact(where string, arg any) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`SELECT id, jid, name, push_name, phone FROM contacts `+where, arg).
		Scan(&c.ID, &c.JID, &c.Name, &c.PushName, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns all contacts ordered by id.
func (db *DB) ListContacts() ([]Contact, error) {
	rows, err := db.Query(`SELECT id, jid, name, push_name, phone FROM contacts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.JID, &c.Name, &c.PushName, &c.Phone); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
