// Package tui is the terminal client. It renders the daemon's projections and
// sends user actions back over the daemon socket.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/tui/client"
	"github.com/matheus3301/wgram/internal/tui/keys"
	"github.com/matheus3301/wgram/internal/tui/model"
	"github.com/matheus3301/wgram/internal/tui/ui"
	"github.com/matheus3301/wgram/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageChats         = "chats"
	pageChat          = "chat"
	pageDetails       = "details"
	pageSearch        = "search"
	pageNotifications = "notifications"
	pageAuth          = "auth"
	pageHelp          = "help"
)

// opTimeout bounds a single user action against the daemon.
const opTimeout = 30 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	main     *tview.Flex
	pages    *ui.Pages
	vm       *model.ViewModel
	registry *keys.Registry

	info     *ui.SessionInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flash    *ui.FlashModel
	flashBar *ui.FlashBar
	prompt   *ui.Prompt
	prompted bool

	chats         *views.ConversationList
	thread        *views.MessageThread
	details       *views.ConversationInfo
	search        *views.SearchView
	notifications *views.NotificationsView
	authView      *views.AuthView
	help          *views.HelpView

	components map[string]ui.Component

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client) *App {
	return newApp(model.NewViewModel(c, model.WatchClient(c)))
}

func newApp(vm *model.ViewModel) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		vm:       vm,
		registry: keys.NewRegistry(),

		info:     ui.NewSessionInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		flash:    ui.NewFlashModel(),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),

		chats:         views.NewConversationList(theme),
		thread:        views.NewMessageThread(theme),
		details:       views.NewConversationInfo(theme),
		notifications: views.NewNotificationsView(theme),
		authView:      views.NewAuthView(theme),
		help:          views.NewHelpView(theme),

		ctx:    ctx,
		cancel: cancel,
	}
	a.search = views.NewSearchView(theme, a.chatTitle)
	a.components = map[string]ui.Component{
		pageChats:         a.chats,
		pageChat:          a.thread,
		pageDetails:       a.details,
		pageSearch:        a.search,
		pageNotifications: a.notifications,
		pageAuth:          a.authView,
		pageHelp:          a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	r := a.registry
	bind := func(page string, ch rune, desc string, fn func()) {
		r.Add(page, &keys.Action{Key: tcell.KeyRune, Rune: ch, Description: desc, Handler: fn})
	}

	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Description: "Command", Handler: func() { a.showPrompt(ui.PromptCommand) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Description: "Help", Handler: a.showHelp})
	r.AddGlobal(&keys.Action{Key: tcell.KeyEscape, Label: "Esc", Description: "Back", Handler: a.back})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: a.quit})

	r.Add(pageChats, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Open", Handler: func() { a.openChat(a.chats.SelectedChat()) }})
	bind(pageChats, '/', "Filter", func() { a.showPrompt(ui.PromptFilter) })
	bind(pageChats, 'm', "More", a.loadMoreChats)
	bind(pageChats, 'n', "Notifications", a.showNotifications)
	bind(pageChats, 's', "Search", func() { a.showSearch("") })
	bind(pageChats, 'd', "Details", func() { a.showDetails(a.chats.SelectedChat()) })
	bind(pageChats, '0', "All", a.chats.ClearFilter)
	for n := 1; n <= 9; n++ {
		r.Add(pageChats, &keys.Action{
			Key:         tcell.KeyRune,
			Rune:        rune('0' + n),
			Label:       "1-9",
			Description: "Jump",
			Hidden:      n > 1,
			Handler:     func() { a.openChat(a.chats.ChatByIndex(n)) },
		})
	}

	bind(pageChat, 'i', "Compose", func() { a.app.SetFocus(a.thread.Composer()) })
	r.Add(pageChat, &keys.Action{Key: tcell.KeyUp, Label: "↑/k", Description: "Older", Handler: a.olderMessage})
	r.Add(pageChat, &keys.Action{Key: tcell.KeyDown, Label: "↓/j", Description: "Newer", Handler: func() { a.thread.Newer() }})
	r.Add(pageChat, &keys.Action{Key: tcell.KeyRune, Rune: 'k', Hidden: true, Handler: a.olderMessage})
	r.Add(pageChat, &keys.Action{Key: tcell.KeyRune, Rune: 'j', Hidden: true, Handler: func() { a.thread.Newer() }})
	bind(pageChat, 'r', "Reply", a.replyToSelected)
	bind(pageChat, 'R', "Retry", a.retrySelected)
	bind(pageChat, 'x', "Delete", func() { a.deleteSelected(false) })
	bind(pageChat, 'X', "Delete for all", func() { a.deleteSelected(true) })
	bind(pageChat, 'p', "Older page", a.pullOlder)
	bind(pageChat, 'd', "Details", func() { a.showDetails(a.vm.OpenChat()) })

	r.Add(pageSearch, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Open", Handler: a.openSearchResult})
	r.Add(pageSearch, &keys.Action{Key: tcell.KeyTab, Label: "Tab", Description: "Query", Handler: func() { a.app.SetFocus(a.search.Input()) }})

	r.Add(pageNotifications, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Open", Handler: a.openNotification})
	bind(pageNotifications, 'r', "Mark read", a.markGroupRead)

	r.Add(pageAuth, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Answer", Handler: a.askAuth})
	bind(pageAuth, 'l', "Link with QR", a.requestQR)
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(stack []string) {
		names := make([]string, len(stack))
		for i, page := range stack {
			names[i] = a.components[page].Name()
		}
		a.crumbs.Update(names)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
		a.focus(a.pages.Current())
	})

	a.thread.SetOnSend(func(text string, replyTo feed.MessageID) {
		a.do("send", func(ctx context.Context) error {
			return a.vm.Send(ctx, text, replyTo)
		}, nil)
	})

	a.search.SetOnQuery(func(query string) {
		var hits []api.SearchHit
		a.do("search", func(ctx context.Context) (err error) {
			hits, err = a.vm.Search(ctx, query)
			return err
		}, func() {
			a.search.Update(hits)
			if len(hits) > 0 {
				a.app.SetFocus(a.search.Results())
			} else {
				a.flash.Info("no messages match " + query)
			}
		})
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.chats.SetFilter(text)
		case ui.PromptAnswer:
			a.answerAuth(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c, true, false)
	}

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.info, 1, 0, false).
		AddItem(a.menu, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.main, true)
	a.app.SetInputCapture(a.capture)
	a.pages.Reset(pageChats)
}

func (a *App) capture(ev *tcell.EventKey) *tcell.EventKey {
	if a.prompted {
		return ev
	}
	// Text inputs get every key; Esc and Tab leave them.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		switch ev.Key() {
		case tcell.KeyEscape:
			if a.pages.Current() == pageChat {
				a.thread.CancelReply()
				a.app.SetFocus(a.thread.Messages())
			} else {
				a.back()
			}
			return nil
		case tcell.KeyTab:
			if a.pages.Current() == pageSearch {
				a.app.SetFocus(a.search.Results())
				return nil
			}
		}
		return ev
	}
	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

func (a *App) focus(page string) {
	switch page {
	case pageChat:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	default:
		if c, ok := a.components[page]; ok {
			a.app.SetFocus(c)
		}
	}
}

// Run starts the TUI application. It blocks until the user quits.
func (a *App) Run() error {
	go a.vm.Follow(a.ctx, func(t model.Target, err error) {
		a.app.QueueUpdateDraw(func() { a.refreshed(t, err) })
	})
	go a.watchFlash()
	defer a.cancel()
	return a.app.Run()
}

// refreshed redraws what the view model reloaded.
func (a *App) refreshed(t model.Target, err error) {
	if err != nil {
		if t == 0 {
			a.info.Update(nil)
			a.flash.Err("watch", err)
			return
		}
		a.flash.Err("refresh", err)
	}
	if t.Has(model.TargetStatus) {
		st := a.vm.Status()
		a.info.Update(st)
		a.syncAuth(st)
	}
	if t.Has(model.TargetChats) {
		a.chats.Update(a.vm.Chats(), a.vm.MoreChats())
	}
	if t.Has(model.TargetHistory) {
		if open := a.vm.OpenChat(); open != 0 {
			a.thread.Update(a.chatTitle(open), a.vm.History())
		}
	}
	if t.Has(model.TargetNotifications) {
		a.notifications.Update(a.vm.Notifications())
	}
}

// syncAuth shows the auth page while the session is not logged in and
// leaves it once it is.
func (a *App) syncAuth(st *api.Status) {
	if st == nil {
		return
	}
	if st.Auth.State != auth.Authorized {
		a.authView.Update(st.Auth)
		if a.pages.Current() != pageAuth {
			a.pages.Reset(pageAuth)
		}
		return
	}
	if a.pages.Contains(pageAuth) {
		a.pages.Reset(pageChats)
		a.flash.Info("logged in")
	}
}

func (a *App) watchFlash() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
			time.AfterFunc(time.Until(msg.Expires), func() {
				a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.GetMessage()) })
			})
		}
	}
}

// do runs fn off the UI goroutine and then, unless it failed, runs then on
// the UI goroutine.
func (a *App) do(op string, fn func(ctx context.Context) error, then func()) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		err := fn(ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(op, err)
				return
			}
			if then != nil {
				then()
			}
		})
	}()
}

func (a *App) chatTitle(id feed.ChatID) string {
	if c, ok := a.vm.Chat(id); ok && c.Title != "" {
		return c.Title
	}
	return fmt.Sprintf("chat %d", id)
}

func (a *App) openChat(id feed.ChatID) {
	if id == 0 {
		return
	}
	a.do("open chat", func(ctx context.Context) error {
		return a.vm.Open(ctx, id)
	}, func() {
		a.thread.Update(a.chatTitle(id), a.vm.History())
		if a.pages.Current() == pageChat {
			a.focus(pageChat)
		} else {
			a.pages.Push(pageChat)
		}
	})
}

func (a *App) loadMoreChats() {
	if !a.vm.MoreChats() {
		a.flash.Info("all chats loaded")
		return
	}
	a.do("load chats", func(ctx context.Context) error {
		return a.vm.LoadChats(ctx, true)
	}, func() {
		a.chats.Update(a.vm.Chats(), a.vm.MoreChats())
	})
}

// olderMessage moves the selection up and pulls the previous page when it
// reaches the oldest loaded message.
func (a *App) olderMessage() {
	if !a.thread.Older() {
		a.pullOlder()
	}
}

func (a *App) pullOlder() {
	if h := a.vm.History(); h != nil && h.Exhausted {
		a.flash.Info("beginning of history")
		return
	}
	var requested bool
	a.do("load older", func(ctx context.Context) (err error) {
		requested, err = a.vm.PullOlder(ctx)
		return err
	}, func() {
		if !requested {
			a.flash.Info("already loading")
		}
		a.thread.Update(a.chatTitle(a.vm.OpenChat()), a.vm.History())
	})
}

func (a *App) replyToSelected() {
	if !a.thread.ReplyToSelected() {
		a.flash.Warn("cannot reply to a message that is still sending")
		return
	}
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) retrySelected() {
	m, ok := a.thread.SelectedMessage()
	if !ok || m.SendingState != feed.SendingFailed {
		a.flash.Warn("only failed messages can be retried")
		return
	}
	a.do("retry", func(ctx context.Context) error {
		return a.vm.Retry(ctx, m.ID)
	}, nil)
}

func (a *App) deleteSelected(revoke bool) {
	m, ok := a.thread.SelectedMessage()
	if !ok {
		return
	}
	a.do("delete", func(ctx context.Context) error {
		return a.vm.Delete(ctx, []feed.MessageID{m.ID}, revoke)
	}, func() {
		a.flash.Info("message deleted")
	})
}

func (a *App) showDetails(id feed.ChatID) {
	c, ok := a.vm.Chat(id)
	if !ok {
		return
	}
	a.details.Update(c)
	a.pages.Push(pageDetails)
}

func (a *App) showSearch(query string) {
	a.pages.Push(pageSearch)
	if query != "" {
		a.search.Submit(query)
	}
}

func (a *App) openSearchResult() {
	if chat, _, ok := a.search.SelectedResult(); ok {
		a.openChat(chat)
	}
}

func (a *App) showNotifications() {
	a.notifications.Update(a.vm.Notifications())
	a.pages.Push(pageNotifications)
}

func (a *App) openNotification() {
	if g, ok := a.notifications.SelectedGroup(); ok {
		a.openChat(g.ChatID)
	}
}

func (a *App) markGroupRead() {
	g, ok := a.notifications.SelectedGroup()
	if !ok {
		return
	}
	a.do("mark read", func(ctx context.Context) error {
		return a.vm.MarkNotificationsRead(ctx, g.GroupID)
	}, nil)
}

func (a *App) showHelp() {
	sections := []views.HelpSection{{Title: "Global", Hints: a.registry.Hints("")}}
	for _, page := range []string{pageChats, pageChat, pageSearch, pageNotifications, pageAuth} {
		sections = append(sections, views.HelpSection{
			Title: a.components[page].Name(),
			Hints: a.registry.PageHints(page),
		})
	}
	a.help.Update(sections)
	a.pages.Push(pageHelp)
}

func (a *App) askAuth() {
	st := a.vm.Status()
	if st == nil {
		return
	}
	q, ok := views.AuthQuestion(st.Auth.State)
	if !ok {
		a.flash.Info(fmt.Sprintf("nothing to enter while %s", st.Auth.State))
		return
	}
	a.prompt.Ask(q.Title, q.Secret)
	a.openPrompt()
}

// answerAuth submits text as the answer the current login state waits for.
func (a *App) answerAuth(text string) {
	st := a.vm.Status()
	if st == nil {
		return
	}
	req := &api.AuthRequest{}
	switch st.Auth.State {
	case auth.WaitPhoneNumber, auth.InvalidNumber:
		req.PhoneNumber = text
	case auth.WaitCode, auth.InvalidCode:
		req.Code = text
	case auth.WaitPassword, auth.InvalidPassword:
		req.Password = text
	default:
		return
	}
	a.authenticate("login", req)
}

func (a *App) requestQR() {
	a.authenticate("link", &api.AuthRequest{QR: true})
}

func (a *App) logout() {
	a.authenticate("logout", &api.AuthRequest{LogOut: true})
}

func (a *App) authenticate(op string, req *api.AuthRequest) {
	var st *api.AuthState
	a.do(op, func(ctx context.Context) (err error) {
		st, err = a.vm.Authenticate(ctx, req)
		return err
	}, func() {
		a.authView.Update(st.Snapshot)
		a.info.Update(a.vm.Status())
		a.syncAuth(a.vm.Status())
	})
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.openPrompt()
}

func (a *App) openPrompt() {
	a.prompted = true
	a.main.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.prompted = false
	a.main.ResizeItem(a.prompt, 0, 0)
	a.focus(a.pages.Current())
}

func (a *App) back() {
	a.pages.Pop()
}

func (a *App) quit() {
	if a.pages.Pop() == "" {
		a.Stop()
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
