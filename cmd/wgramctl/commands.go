package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/lock"
	"github.com/matheus3301/wgram/internal/session"
	"github.com/matheus3301/wgram/internal/tui/ui"
)

func flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	return nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid %s %q", what, s)
	}
	return id, nil
}

func chatArg(args []string) (feed.ChatID, error) {
	if len(args) == 0 {
		return 0, usagef("chat id is required")
	}
	id, err := parseID(args[0], "chat id")
	return feed.ChatID(id), err
}

func cmdStatus(ctx context.Context, c *cli, _ []string) error {
	st, err := c.client.GetStatus(ctx)
	if err != nil {
		// Explain a daemon that holds the lock but does not answer.
		h, held, lerr := lock.Inspect(session.Dir(c.session))
		switch {
		case lerr != nil:
			return err
		case held:
			return fmt.Errorf("%s (lock held by PID %d, %s backend, since %s)", describe(err), h.PID, h.Backend, h.Since.Format(time.DateTime))
		default:
			return fmt.Errorf("daemon for session %q is not running", c.session)
		}
	}
	return c.out.emit(st, func(w io.Writer) {
		fmt.Fprintf(w, "Session:       %s (%s backend)\n", st.Session, st.Backend)
		fmt.Fprintf(w, "Auth:          %s\n", st.Auth.State)
		if st.PhoneNumber != "" {
			fmt.Fprintf(w, "Phone:         %s\n", st.PhoneNumber)
		}
		fmt.Fprintf(w, "Uptime:        %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
		fmt.Fprintf(w, "Chats:         %d\n", st.ChatCount)
		if st.OpenChatID != 0 {
			fmt.Fprintf(w, "Open chat:     %d\n", st.OpenChatID)
		}
		fmt.Fprintf(w, "Notifications: %d\n", st.Notifications)
		if st.DroppedEvents > 0 {
			fmt.Fprintf(w, "Dropped:       %d events\n", st.DroppedEvents)
		}
	})
}

func cmdAuth(ctx context.Context, c *cli, args []string) error {
	fs := flags("auth")
	phone := fs.String("phone", "", "")
	code := fs.String("code", "", "")
	password := fs.String("password", "", "")
	qr := fs.Bool("qr", false, "")
	logout := fs.Bool("logout", false, "")
	if err := parse(fs, args); err != nil {
		return err
	}

	req := &api.AuthRequest{PhoneNumber: *phone, Code: *code, Password: *password, QR: *qr, LogOut: *logout}
	var st *api.AuthState
	if *req == (api.AuthRequest{}) {
		status, err := c.client.GetStatus(ctx)
		if err != nil {
			return err
		}
		st = &api.AuthState{Snapshot: status.Auth}
	} else {
		var err error
		if st, err = c.client.Authenticate(ctx, req); err != nil {
			return err
		}
	}
	return c.out.emit(st, func(w io.Writer) {
		fmt.Fprintf(w, "State: %s\n", st.State)
		if st.Link == "" {
			return
		}
		fmt.Fprintf(w, "Link:  %s\n\n", st.Link)
		if code, err := ui.RenderQR(st.Link); err == nil {
			fmt.Fprint(w, code)
		}
	})
}

func cmdChats(ctx context.Context, c *cli, args []string) error {
	fs := flags("chats")
	more := fs.Bool("more", false, "")
	limit := fs.Int("limit", 0, "")
	if err := parse(fs, args); err != nil {
		return err
	}
	list, err := c.client.ListChats(ctx, &api.ListChatsRequest{Load: *more, Limit: int32(*limit)})
	if err != nil {
		return err
	}
	return c.out.emit(list, func(w io.Writer) {
		if len(list.Chats) == 0 {
			fmt.Fprintln(w, "No chats loaded.")
		}
		for _, ch := range list.Chats {
			unread := ""
			if ch.UnreadCount > 0 {
				unread = fmt.Sprintf("(%d) ", ch.UnreadCount)
			}
			fmt.Fprintf(w, "%-12d %-8s %s%s  %s\n", ch.ID, ch.Type, unread, ch.Title, oneLine(ch.LastText, 50))
		}
		if list.More {
			fmt.Fprintln(w, "(more chats available: chats --more)")
		}
	})
}

func printHistory(w io.Writer, page *api.HistoryPage) {
	if page.BackfillError != "" {
		fmt.Fprintf(w, "older messages unavailable: %s\n", page.BackfillError)
	} else if page.Exhausted {
		fmt.Fprintln(w, "-- beginning of history --")
	}
	for i := len(page.Messages) - 1; i >= 0; i-- {
		m := page.Messages[i]
		who := m.SenderName
		if m.IsOutgoing {
			who = "you"
		}
		state := ""
		switch m.SendingState {
		case feed.SendingPending:
			state = " [sending]"
		case feed.SendingFailed:
			state = " [failed]"
		}
		fmt.Fprintf(w, "%-10d %s %s%s: %s\n", m.ID, time.Unix(m.Date, 0).Format(time.DateTime), who, state, m.Text)
	}
}

func cmdHistory(ctx context.Context, c *cli, args []string) error {
	chat, err := chatArg(args)
	if err != nil {
		return err
	}
	page, err := c.client.OpenChat(ctx, &api.OpenChatRequest{ChatID: chat})
	if err != nil {
		return err
	}
	return c.out.emit(page, func(w io.Writer) { printHistory(w, page) })
}

func cmdPull(ctx context.Context, c *cli, args []string) error {
	chat, err := chatArg(args)
	if err != nil {
		return err
	}
	if _, err := c.client.OpenChat(ctx, &api.OpenChatRequest{ChatID: chat}); err != nil {
		return err
	}
	resp, err := c.client.PullOlder(ctx, &api.HistoryRequest{ChatID: chat})
	if err != nil {
		return err
	}
	page, err := c.client.GetHistory(ctx, &api.HistoryRequest{ChatID: chat})
	if err != nil {
		return err
	}
	return c.out.emit(page, func(w io.Writer) {
		if !resp.Requested {
			fmt.Fprintln(w, "nothing requested: history exhausted or a request is in flight")
		}
		printHistory(w, page)
	})
}

func printSent(w io.Writer, resp *api.SendResponse) {
	if resp.Message == nil {
		fmt.Fprintln(w, "accepted")
		return
	}
	fmt.Fprintf(w, "sent as message %d\n", resp.Message.ID)
}

func cmdSend(ctx context.Context, c *cli, args []string) error {
	fs := flags("send")
	reply := fs.Int64("reply", 0, "")
	silent := fs.Bool("silent", false, "")
	wait := fs.Bool("wait", false, "")
	if err := parse(fs, args); err != nil {
		return err
	}
	chat, err := chatArg(fs.Args())
	if err != nil {
		return err
	}
	text := strings.Join(fs.Args()[1:], " ")
	if strings.TrimSpace(text) == "" {
		return usagef("text is required")
	}
	resp, err := c.client.SendText(ctx, &api.SendTextRequest{
		ChatID:  chat,
		Text:    text,
		ReplyTo: feed.MessageID(*reply),
		Silent:  *silent,
		Wait:    *wait,
	})
	if err != nil {
		return err
	}
	return c.out.emit(resp, func(w io.Writer) { printSent(w, resp) })
}

func cmdRetry(ctx context.Context, c *cli, args []string) error {
	fs := flags("retry")
	wait := fs.Bool("wait", false, "")
	if err := parse(fs, args); err != nil {
		return err
	}
	chat, err := chatArg(fs.Args())
	if err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usagef("message id is required")
	}
	id, err := parseID(fs.Arg(1), "message id")
	if err != nil {
		return err
	}
	if _, err := c.client.OpenChat(ctx, &api.OpenChatRequest{ChatID: chat}); err != nil {
		return err
	}
	resp, err := c.client.Retry(ctx, &api.RetryRequest{MessageID: feed.MessageID(id), Wait: *wait})
	if err != nil {
		return err
	}
	return c.out.emit(resp, func(w io.Writer) { printSent(w, resp) })
}

func cmdDelete(ctx context.Context, c *cli, args []string) error {
	fs := flags("delete")
	all := fs.Bool("all", false, "")
	if err := parse(fs, args); err != nil {
		return err
	}
	chat, err := chatArg(fs.Args())
	if err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usagef("at least one message id is required")
	}
	var ids []feed.MessageID
	for _, s := range fs.Args()[1:] {
		id, err := parseID(s, "message id")
		if err != nil {
			return err
		}
		ids = append(ids, feed.MessageID(id))
	}
	if _, err := c.client.OpenChat(ctx, &api.OpenChatRequest{ChatID: chat}); err != nil {
		return err
	}
	if err := c.client.DeleteMessages(ctx, &api.DeleteRequest{MessageIDs: ids, Revoke: *all}); err != nil {
		return err
	}
	return c.out.emit(map[string]any{"deleted": ids}, func(w io.Writer) {
		fmt.Fprintf(w, "deleted %d message(s)\n", len(ids))
	})
}

func cmdRead(ctx context.Context, c *cli, args []string) error {
	chat, err := chatArg(args)
	if err != nil {
		return err
	}
	if _, err := c.client.OpenChat(ctx, &api.OpenChatRequest{ChatID: chat}); err != nil {
		return err
	}
	if err := c.client.MarkRead(ctx, &api.MarkReadRequest{}); err != nil {
		return err
	}
	return c.out.emit(map[string]any{"read": chat}, func(w io.Writer) {
		fmt.Fprintf(w, "chat %d marked read\n", chat)
	})
}

func cmdNotifications(ctx context.Context, c *cli, args []string) error {
	if len(args) > 0 {
		if args[0] != "read" || len(args) != 2 {
			return usagef("expected: notifications read <group>")
		}
		id, err := parseID(args[1], "group id")
		if err != nil {
			return err
		}
		if err := c.client.MarkNotificationsRead(ctx, &api.MarkNotificationsRequest{GroupID: feed.NotificationGroupID(id)}); err != nil {
			return err
		}
		return c.out.emit(map[string]any{"read": id}, func(w io.Writer) {
			fmt.Fprintf(w, "group %d marked read\n", id)
		})
	}

	list, err := c.client.ListNotifications(ctx)
	if err != nil {
		return err
	}
	return c.out.emit(list, func(w io.Writer) {
		if len(list.Groups) == 0 {
			fmt.Fprintln(w, "No notifications.")
		}
		for _, g := range list.Groups {
			silent := ""
			if g.Silent {
				silent = " (silent)"
			}
			fmt.Fprintf(w, "group %d  %s  %d new%s\n", g.GroupID, g.Title, g.TotalCount, silent)
			for _, l := range g.Lines {
				if l.Sender != "" {
					fmt.Fprintf(w, "    %s: %s\n", l.Sender, oneLine(l.Text, 70))
				} else {
					fmt.Fprintf(w, "    %s\n", oneLine(l.Text, 70))
				}
			}
		}
	})
}

func cmdSearch(ctx context.Context, c *cli, args []string) error {
	fs := flags("search")
	chat := fs.Int64("chat", 0, "")
	limit := fs.Int("limit", 20, "")
	if err := parse(fs, args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return usagef("query is required")
	}
	resp, err := c.client.Search(ctx, &api.SearchRequest{Query: query, ChatID: feed.ChatID(*chat), Limit: int32(*limit)})
	if err != nil {
		return err
	}
	return c.out.emit(resp, func(w io.Writer) {
		fmt.Fprintf(w, "%d match(es)\n", resp.Total)
		for _, h := range resp.Hits {
			fmt.Fprintf(w, "chat %-10d msg %-10d %s  %s\n", h.Message.ChatID, h.Message.ID,
				time.Unix(h.Message.Date, 0).Format(time.DateTime), oneLine(h.Snippet, 70))
		}
	})
}

func cmdWatch(ctx context.Context, c *cli, args []string) error {
	w, err := c.client.Watch(ctx, &api.WatchRequest{Prefixes: args})
	if err != nil {
		return err
	}
	for {
		evt, err := w.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		err = c.out.emit(evt, func(w io.Writer) {
			at := time.UnixMilli(evt.OccurredAtUnixMs).Format("15:04:05.000")
			fmt.Fprintf(w, "%s %-20s %s\n", at, evt.Kind, evt.Payload)
		})
		// Events without the selected field are skipped.
		if err != nil && !errors.Is(err, errNoField) {
			return err
		}
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
