package tui

import (
	"strings"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/feed"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// FindChat returns the first chat in list order whose title contains name.
// An exact title match wins over a partial one.
func FindChat(chats []api.Chat, name string) (feed.ChatID, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	for _, c := range chats {
		if strings.EqualFold(c.Title, name) {
			return c.ID, true
		}
	}
	lower := strings.ToLower(name)
	for _, c := range chats {
		if strings.Contains(strings.ToLower(c.Title), lower) {
			return c.ID, true
		}
	}
	return 0, false
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "chat", "c":
		id, ok := FindChat(a.vm.Chats(), cmd.Args)
		if !ok {
			a.flash.Warn("no chat matches " + cmd.Args)
			return
		}
		a.openChat(id)
	case "search", "s":
		a.showSearch(cmd.Args)
	case "notifications", "n":
		a.showNotifications()
	case "more":
		a.loadMoreChats()
	case "pull", "retry", "delete":
		if a.vm.OpenChat() == 0 || a.pages.Current() != pageChat {
			a.flash.Warn(":" + cmd.Name + " needs an open chat")
			return
		}
		switch cmd.Name {
		case "pull":
			a.pullOlder()
		case "retry":
			a.retrySelected()
		case "delete":
			a.deleteSelected(cmd.Args == "all")
		}
	case "logout":
		a.logout()
	case "help", "h":
		a.showHelp()
	case "quit", "q":
		a.Stop()
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
}
