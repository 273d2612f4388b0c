package chats

import (
	"cmp"
	"slices"
	"sync"

	"github.com/matheus3301/wgram/internal/feed"
)

type orderEntry struct {
	chatID feed.ChatID
	order  int64
	seq    uint64
}

// compareEntries sorts by order descending, then by insertion sequence.
func compareEntries(a, b orderEntry) int {
	if c := cmp.Compare(b.order, a.order); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// orderIndex is the main-list ranking. It holds at most one entry per chat.
type orderIndex struct {
	mu      sync.Mutex
	entries []orderEntry
	byID    map[feed.ChatID]orderEntry
	nextSeq uint64
}

func newOrderIndex() *orderIndex {
	return &orderIndex{byID: make(map[feed.ChatID]orderEntry)}
}

// set ranks chatID at order, or removes it when order is 0. It reports whether
// the ranking changed and, if so, the new id sequence.
func (x *orderIndex) set(chatID feed.ChatID, order int64) (bool, []feed.ChatID) {
	x.mu.Lock()
	defer x.mu.Unlock()

	old, had := x.byID[chatID]
	if had && old.order == order {
		return false, nil
	}
	if !had && order == 0 {
		return false, nil
	}
	if had {
		if i, found := slices.BinarySearchFunc(x.entries, old, compareEntries); found {
			x.entries = slices.Delete(x.entries, i, i+1)
		}
		delete(x.byID, chatID)
	}
	if order != 0 {
		e := orderEntry{chatID: chatID, order: order, seq: x.nextSeq}
		x.nextSeq++
		i, _ := slices.BinarySearchFunc(x.entries, e, compareEntries)
		x.entries = slices.Insert(x.entries, i, e)
		x.byID[chatID] = e
	}

	ids := make([]feed.ChatID, len(x.entries))
	for i, e := range x.entries {
		ids[i] = e.chatID
	}
	return true, ids
}
