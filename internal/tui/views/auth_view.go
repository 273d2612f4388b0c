package views

import (
	"fmt"

	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/tui/ui"
	"github.com/rivo/tview"
)

// Question is the input a login state waits for.
type Question struct {
	Title  string
	Secret bool
}

// AuthQuestion returns what the user must enter in state s, if anything.
func AuthQuestion(s auth.State) (Question, bool) {
	switch s {
	case auth.WaitPhoneNumber, auth.InvalidNumber:
		return Question{Title: "Phone number"}, true
	case auth.WaitCode, auth.InvalidCode:
		return Question{Title: "Login code"}, true
	case auth.WaitPassword, auth.InvalidPassword:
		return Question{Title: "Password", Secret: true}, true
	}
	return Question{}, false
}

// AuthView shows the login state and, while a device link is pending, the
// link as a QR code.
type AuthView struct {
	*tview.TextView
	theme *ui.Theme
	last  auth.Snapshot
}

// NewAuthView creates a new auth view.
func NewAuthView(theme *ui.Theme) *AuthView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Authentication Required ")
	tv.SetTitleColor(theme.TitleColor)

	return &AuthView{
		TextView: tv,
		theme:    theme,
	}
}

func (av *AuthView) Name() string { return "Auth" }

// Update renders snap. Unchanged snapshots are skipped so the QR code is not
// redrawn on every refresh.
func (av *AuthView) Update(snap auth.Snapshot) {
	if snap == av.last && av.GetText(false) != "" {
		return
	}
	av.last = snap
	av.Clear()

	fg := ui.Tag(av.theme.CounterColor)
	_, _ = fmt.Fprintf(av, "\n  state [%s::b]%s[-:-:-]\n\n", fg, snap.State)

	switch snap.State {
	case auth.WaitOtherDeviceConfirmation:
		qr, err := ui.RenderQR(snap.Link)
		if err != nil {
			_, _ = fmt.Fprintf(av, "  [%s]QR generation failed: %s[-]\n", ui.Tag(av.theme.FailedColor), tview.Escape(err.Error()))
			return
		}
		_, _ = fmt.Fprintf(av, "  Scan this code from the phone's linked devices screen:\n\n%s\n  [::d]Waiting for confirmation...[-:-:-]", qr)
	case auth.InvalidNumber, auth.InvalidCode, auth.InvalidPassword:
		_, _ = fmt.Fprintf(av, "  [%s]Rejected, try again.[-]\n\n  Press [::b]Enter[-:-:-] to answer.", ui.Tag(av.theme.FailedColor))
	case auth.Unauthorized:
		_, _ = fmt.Fprint(av, "  Waiting for the daemon to connect...")
	case auth.LoggingOut:
		_, _ = fmt.Fprint(av, "  Logging out...")
	case auth.Authorized:
		_, _ = fmt.Fprint(av, "  Logged in. Loading chats...")
	default:
		_, _ = fmt.Fprint(av, "  Press [::b]Enter[-:-:-] to answer, [::b]l[-:-:-] to link with a QR code.")
	}
}
