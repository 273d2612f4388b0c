package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wgram/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpSection is one titled group of key bindings.
type HelpSection struct {
	Title string
	Hints []ui.MenuHint
}

// Commands lists the ":" commands shown in help.
var Commands = []ui.MenuHint{
	{Key: ":chat <name>", Description: "Open the first chat whose title matches"},
	{Key: ":search <query>", Description: "Search stored messages"},
	{Key: ":notifications", Description: "Show notification groups"},
	{Key: ":more", Description: "Load more chats"},
	{Key: ":pull", Description: "Load older messages of the open chat"},
	{Key: ":retry", Description: "Resend the selected failed message"},
	{Key: ":delete [all]", Description: "Delete the selected message, for everyone with all"},
	{Key: ":logout", Description: "Log the session out"},
	{Key: ":help, :h", Description: "Show this help"},
	{Key: ":quit, :q", Description: "Quit"},
}

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	return &HelpView{
		TextView: tv,
		theme:    theme,
	}
}

func (hv *HelpView) Name() string { return "Help" }

// Update renders the sections followed by the command list.
func (hv *HelpView) Update(sections []HelpSection) {
	hv.Clear()
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var b strings.Builder
	write := func(title string, hints []ui.MenuHint) {
		width := 0
		for _, h := range hints {
			width = max(width, len(h.Key))
		}
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", title)
		for _, h := range hints {
			fmt.Fprintf(&b, "  [%s]%-*s[-]  %s\n", kc, width, tview.Escape(h.Key), h.Description)
		}
	}
	for _, s := range sections {
		write(s.Title, s.Hints)
	}
	write("Commands", Commands)
	_, _ = fmt.Fprint(hv, b.String())
	hv.ScrollToBeginning()
}
