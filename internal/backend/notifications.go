package backend

import (
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/store"
)

// Each chat owns one message notification group whose id is the chat id.
func groupOf(chatID int64) feed.NotificationGroupID {
	return feed.NotificationGroupID(chatID)
}

func (l *Local) groupCountMax() int {
	n, err := l.db.Option(OptionGroupCountMax, defaultGroupCountMax)
	if err != nil || n <= 0 {
		return defaultGroupCountMax
	}
	return int(n)
}

func (l *Local) toNotification(n store.Notification) (feed.Notification, bool) {
	m, err := l.db.GetMessage(n.MessageID)
	if err != nil || m == nil {
		return feed.Notification{}, false
	}
	return feed.Notification{
		ID:       feed.NotificationID(n.ID),
		Date:     n.Date / 1000,
		IsSilent: n.Silent,
		Type:     feed.NewMessageNotification{Message: toFeedMessage(*m)},
	}, true
}

// activeGroupsLocked builds one group per chat with active notifications,
// keeping only the newest notifications up to the configured cap.
func (l *Local) activeGroupsLocked() ([]feed.NotificationGroup, error) {
	all, err := l.db.ActiveNotifications()
	if err != nil {
		return nil, err
	}
	limit := l.groupCountMax()
	var groups []feed.NotificationGroup
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].ChatID == all[i].ChatID {
			j++
		}
		chatNotes := all[i:j]
		g := feed.NotificationGroup{
			ID:         groupOf(all[i].ChatID),
			Type:       feed.GroupMessages,
			ChatID:     feed.ChatID(all[i].ChatID),
			TotalCount: int32(len(chatNotes)),
		}
		for _, n := range chatNotes[max(len(chatNotes)-limit, 0):] {
			if fn, ok := l.toNotification(n); ok {
				g.Notifications = append(g.Notifications, fn)
			}
		}
		groups = append(groups, g)
		i = j
	}
	return groups, nil
}

// notifyLocked records a notification for an incoming message and publishes
// the group delta.
func (l *Local) notifyLocked(c *store.Chat, m store.Message) error {
	silent := c.MutedUntil > m.Timestamp
	id, err := l.db.AddNotification(c.ID, m.ID, m.Timestamp, silent)
	if err != nil {
		return err
	}
	notes, err := l.db.ChatNotifications(c.ID)
	if err != nil {
		return err
	}
	added, ok := l.toNotification(store.Notification{ID: id, ChatID: c.ID, MessageID: m.ID, Date: m.Timestamp, Silent: silent})
	if !ok {
		return nil
	}
	l.hub.Publish(feed.NotificationGroupChanged{
		GroupID:    groupOf(c.ID),
		Type:       feed.GroupMessages,
		ChatID:     feed.ChatID(c.ID),
		TotalCount: int32(len(notes)),
		Added:      []feed.Notification{added},
	})
	return nil
}

// dropNotificationsLocked removes notifications for messages up to upTo or
// listed in msgIDs and publishes the group delta.
func (l *Local) dropNotificationsLocked(chatID, upTo int64, msgIDs []int64) error {
	removed, err := l.db.RemoveNotifications(chatID, upTo, msgIDs)
	if err != nil || len(removed) == 0 {
		return err
	}
	left, err := l.db.ChatNotifications(chatID)
	if err != nil {
		return err
	}
	ids := make([]feed.NotificationID, len(removed))
	for i, id := range removed {
		ids[i] = feed.NotificationID(id)
	}
	l.hub.Publish(feed.NotificationGroupChanged{
		GroupID:    groupOf(chatID),
		Type:       feed.GroupMessages,
		ChatID:     feed.ChatID(chatID),
		TotalCount: int32(len(left)),
		Removed:    ids,
	})
	return nil
}
