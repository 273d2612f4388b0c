package ui

import "github.com/rivo/tview"

// Component is a page of the TUI. Its key hints come from the keys registry.
type Component interface {
	tview.Primitive
	Name() string
}
