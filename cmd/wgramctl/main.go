package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/wgram/internal/session"
	"github.com/matheus3301/wgram/internal/tui/client"
)

// cli carries the global flags into every command.
type cli struct {
	session string
	client  *client.Client
	out     output
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, c *cli, args []string) error
	// stream commands run until interrupted instead of under --timeout.
	stream bool
}

var commands = map[string]command{
	"status":        {"status", "Show daemon and login status", cmdStatus, false},
	"auth":          {"auth [--phone N | --code C | --password P | --qr | --logout]", "Show or advance the login", cmdAuth, false},
	"chats":         {"chats [--more] [--limit N]", "List the main chat list", cmdChats, false},
	"history":       {"history <chat>", "Open a chat and print its loaded history", cmdHistory, false},
	"pull":          {"pull <chat>", "Load the page before the oldest loaded message", cmdPull, false},
	"send":          {"send [--reply ID] [--silent] [--wait] <chat> <text...>", "Send a text message", cmdSend, false},
	"retry":         {"retry [--wait] <chat> <message>", "Resend a failed message", cmdRetry, false},
	"delete":        {"delete [--all] <chat> <message...>", "Delete messages, for everyone with --all", cmdDelete, false},
	"read":          {"read <chat>", "Mark a chat's loaded messages as read", cmdRead, false},
	"notifications": {"notifications [read <group>]", "List notification groups or mark one read", cmdNotifications, false},
	"search":        {"search [--chat ID] [--limit N] <query...>", "Search stored messages", cmdSearch, false},
	"watch":         {"watch [prefix...]", "Stream projection events", cmdWatch, true},
}

var order = []string{"status", "auth", "chats", "history", "pull", "send", "retry", "delete", "read", "notifications", "search", "watch"}

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	fieldFlag := flag.String("field", "", "print one value of the JSON output, as a gjson path (e.g. auth.state, chats.#.title)")
	timeoutFlag := flag.Duration("timeout", 10*time.Second, "deadline for one request")
	flag.Usage = printUsage
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	socketPath := session.SocketPath(sessionName)
	c, err := client.New(socketPath)
	if err != nil {
		fail(fmt.Errorf("cannot connect to daemon for session %q: %w", sessionName, err))
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !cmd.stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeoutFlag)
		defer cancel()
	}

	state := &cli{
		session: sessionName,
		client:  c,
		out:     output{json: *jsonFlag, field: *fieldFlag, w: os.Stdout},
	}
	if err := cmd.run(ctx, state, args[1:]); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(os.Stderr, "usage: wgramctl %s\n", cmd.usage)
			os.Exit(2)
		}
		fail(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wgramctl [--session <name>] [--json] [--field <path>] [--timeout <d>] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, name := range order {
		fmt.Fprintf(os.Stderr, "  %-62s %s\n", commands[name].usage, commands[name].help)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", describe(err))
	os.Exit(1)
}
