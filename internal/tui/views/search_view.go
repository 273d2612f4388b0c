package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/tui/ui"
	"github.com/rivo/tview"
)

// SearchView runs full-text searches over stored messages.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	titleOf func(feed.ChatID) string
	onQuery func(query string)
	hits    []api.SearchHit
}

// NewSearchView creates a new search view. titleOf names the chat of a hit.
func NewSearchView(theme *ui.Theme, titleOf func(feed.ChatID) string) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Results ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	sv := &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
		titleOf: titleOf,
	}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil && sv.input.GetText() != "" {
			sv.onQuery(sv.input.GetText())
		}
	})
	return sv
}

func (sv *SearchView) Name() string { return "Search" }

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// Submit fills the input with q and runs it, as when a search starts from
// the command line.
func (sv *SearchView) Submit(q string) {
	sv.input.SetText(q)
	if sv.onQuery != nil {
		sv.onQuery(q)
	}
}

// Update refreshes search results.
func (sv *SearchView) Update(hits []api.SearchHit) {
	sv.hits = hits
	sv.results.Clear()

	for col, h := range []string{" CHAT", " FROM", " SNIPPET", " TIME"} {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	now := time.Now()
	for i, h := range hits {
		row := i + 1
		chat := fmt.Sprintf("chat %d", h.Message.ChatID)
		if sv.titleOf != nil {
			if t := sv.titleOf(h.Message.ChatID); t != "" {
				chat = t
			}
		}
		snippet := h.Snippet
		if snippet == "" {
			snippet = h.Message.Text
		}
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+cellText(chat)).SetMaxWidth(25).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+cellText(sender(h.Message))).SetMaxWidth(20).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+cellText(snippet)).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 3, tview.NewTableCell(" "+stamp(h.Message.Date, now)).SetTextColor(sv.theme.FgColor))
	}
	sv.results.SetTitle(fmt.Sprintf(" Results (%d) ", len(hits)))
	sv.results.Select(1, 0)
}

// SelectedResult returns the chat and message of the highlighted hit.
func (sv *SearchView) SelectedResult() (feed.ChatID, feed.MessageID, bool) {
	row, _ := sv.results.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(sv.hits) {
		return 0, 0, false
	}
	m := sv.hits[idx].Message
	return m.ChatID, m.ID, true
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
