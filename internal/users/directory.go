// Package users keeps user snapshots so senders can be shown by name.
package users

import (
	"context"
	"maps"
	"strconv"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/observe"
)

// Directory maps user ids to snapshots.
type Directory struct {
	client feed.Client
	users  *observe.Value[map[feed.UserID]feed.User]
	cancel context.CancelFunc
}

func New(client feed.Client) *Directory {
	return &Directory{
		client: client,
		users:  observe.NewValue(map[feed.UserID]feed.User{}),
	}
}

// Start applies user updates until ctx ends or Stop is called.
func (d *Directory) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	ch, unsub := d.client.Subscribe(64)
	go func() {
		defer unsub()
		for {
			select {
			case u := <-ch:
				d.Apply(u)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *Directory) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Directory) Apply(u feed.Update) {
	switch u := u.(type) {
	case feed.UserUpdated:
		next := maps.Clone(d.users.Load())
		next[u.User.ID] = u.User
		d.users.Set(next)
	case feed.UserStatusChanged:
		cur := d.users.Load()
		usr, ok := cur[u.UserID]
		if !ok {
			return
		}
		usr.Status = u.Status
		next := maps.Clone(cur)
		next[u.UserID] = usr
		d.users.Set(next)
	}
}

func (d *Directory) User(id feed.UserID) (feed.User, bool) {
	usr, ok := d.users.Load()[id]
	return usr, ok
}

// DisplayName falls back to the phone number, then to the numeric id.
func (d *Directory) DisplayName(id feed.UserID) string {
	usr, ok := d.User(id)
	if !ok {
		return "user " + strconv.FormatInt(int64(id), 10)
	}
	if name := usr.FullName(); name != "" {
		return name
	}
	if usr.PhoneNumber != "" {
		return usr.PhoneNumber
	}
	return "user " + strconv.FormatInt(int64(id), 10)
}
