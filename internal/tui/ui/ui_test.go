package ui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRenderQR(t *testing.T) {
	out, err := RenderQR("wgram://link/abc")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 10 {
		t.Fatalf("got %d lines, want a full code", len(lines))
	}
	if !strings.ContainsRune(out, '█') {
		t.Error("QR output has no full blocks")
	}
}

func TestTag(t *testing.T) {
	if got := Tag(tcell.ColorOrange); got != "orange" {
		t.Errorf("Tag(orange) = %q", got)
	}
	if got := Tag(tcell.NewRGBColor(1, 2, 3)); got != "#010203" {
		t.Errorf("Tag(rgb) = %q, want #010203", got)
	}
}

func TestPagesStack(t *testing.T) {
	p := NewPages()
	for _, name := range []string{"chats", "chat", "info"} {
		p.AddPage(name, tview.NewBox(), true, false)
	}
	var seen [][]string
	p.SetOnChange(func(stack []string) { seen = append(seen, stack) })

	p.Reset("chats")
	p.Push("chat")
	p.Push("info")
	if got := p.Current(); got != "info" {
		t.Fatalf("Current() = %q, want info", got)
	}
	if got := p.Pop(); got != "info" {
		t.Errorf("Pop() = %q, want info", got)
	}
	p.Pop()
	// The root page stays.
	if got := p.Pop(); got != "" || p.Current() != "chats" {
		t.Errorf("Pop() on root = %q, current %q", got, p.Current())
	}
	if len(seen) != 5 {
		t.Errorf("onChange fired %d times, want 5", len(seen))
	}
}

func TestFlashExpires(t *testing.T) {
	f := NewFlashModel()
	f.set("sent", FlashInfo, -1)
	if got := f.Get(); got != "" {
		t.Errorf("expired flash = %q", got)
	}
	f.Warn("slow")
	if m := f.GetMessage(); m == nil || m.Level != FlashWarn {
		t.Errorf("GetMessage() = %+v", m)
	}
	f.Err("send", status.Error(codes.NotFound, "chat 3 not found"))
	if got := f.Get(); got != "send: chat 3 not found" {
		t.Errorf("Err flash = %q", got)
	}
}
