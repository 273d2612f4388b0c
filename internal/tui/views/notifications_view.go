package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wgram/internal/notify"
	"github.com/matheus3301/wgram/internal/tui/ui"
	"github.com/rivo/tview"
)

// NotificationsView lists the active notification groups.
type NotificationsView struct {
	*tview.Table
	theme  *ui.Theme
	groups []notify.Rendered
}

func NewNotificationsView(theme *ui.Theme) *NotificationsView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	nv := &NotificationsView{Table: table, theme: theme}
	nv.Update(nil)
	return nv
}

func (nv *NotificationsView) Name() string { return "Notifications" }

func (nv *NotificationsView) Update(groups []notify.Rendered) {
	nv.groups = groups
	nv.Clear()
	for col, h := range []string{" CHAT", " COUNT", " LATEST", " TIME"} {
		nv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(nv.theme.TableHeaderFg).
			SetBackgroundColor(nv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	now := time.Now()
	for i, g := range groups {
		row := i + 1
		var latest string
		if n := len(g.Lines); n > 0 {
			l := g.Lines[n-1]
			latest = l.Text
			if g.IsGroupChat && l.Sender != "" {
				latest = l.Sender + ": " + latest
			}
		}
		fg := nv.theme.UnreadColor
		if g.Silent {
			fg = nv.theme.PendingColor
		}
		nv.SetCell(row, 0, tview.NewTableCell(" "+cellText(g.Title)).SetMaxWidth(30).SetTextColor(fg))
		nv.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf(" %d", g.TotalCount)).SetAlign(tview.AlignRight).SetTextColor(nv.theme.CounterColor))
		nv.SetCell(row, 2, tview.NewTableCell(" "+cellText(latest)).SetExpansion(1).SetTextColor(nv.theme.FgColor))
		nv.SetCell(row, 3, tview.NewTableCell(" "+stamp(g.When, now)).SetTextColor(nv.theme.FgColor))
	}
	nv.SetTitle(fmt.Sprintf(" Notifications (%d) ", len(groups)))
}

// SelectedGroup returns the highlighted group.
func (nv *NotificationsView) SelectedGroup() (notify.Rendered, bool) {
	row, _ := nv.GetSelection()
	if row < 1 || row > len(nv.groups) {
		return notify.Rendered{}, false
	}
	return nv.groups[row-1], true
}
