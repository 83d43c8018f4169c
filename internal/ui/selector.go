package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yolodolo42/walletdash/internal/wallet"
)

// SelectorItem represents an item in the selector
type SelectorItem struct {
	ID          string
	Label       string
	Description string
	Current     bool
	// Disabled items are listed but cannot be chosen.
	Disabled bool
}

// Selector is an interactive list selector
type Selector struct {
	title    string
	items    []SelectorItem
	cursor   int
	selected int
	active   bool
	width    int
}

// NewSelector creates a new selector. The cursor starts on the current
// item, or on the first enabled one.
func NewSelector(title string, items []SelectorItem) Selector {
	selected := -1
	for i, item := range items {
		if item.Current && !item.Disabled {
			selected = i
			break
		}
	}
	if selected == -1 {
		for i, item := range items {
			if !item.Disabled {
				selected = i
				break
			}
		}
	}
	if selected == -1 {
		selected = 0
	}

	return Selector{
		title:    title,
		items:    items,
		cursor:   selected,
		selected: selected,
		active:   true,
		width:    80,
	}
}

// ProviderItems lists every known provider; the ones not installed are
// shown disabled so the user knows what could be installed.
func ProviderItems(descriptors []wallet.Descriptor, current wallet.ProviderID) []SelectorItem {
	items := make([]SelectorItem, 0, len(descriptors))
	for _, d := range descriptors {
		desc := "detected"
		if !d.Available {
			desc = "not installed"
		}
		items = append(items, SelectorItem{
			ID:          string(d.ID),
			Label:       d.DisplayName,
			Description: desc,
			Current:     d.ID == current,
			Disabled:    !d.Available,
		})
	}
	return items
}

// SetWidth sets the selector width
func (s *Selector) SetWidth(w int) {
	s.width = w
}

// Active returns whether the selector is active
func (s *Selector) Active() bool {
	return s.active
}

// Selected returns the selected item ID, or empty if cancelled
func (s *Selector) Selected() string {
	if s.selected >= 0 && s.selected < len(s.items) {
		return s.items[s.selected].ID
	}
	return ""
}

// Cancelled returns whether the selector was cancelled
func (s *Selector) Cancelled() bool {
	return !s.active && s.selected == -1
}

func (s *Selector) move(delta int) {
	for i := s.cursor + delta; i >= 0 && i < len(s.items); i += delta {
		if !s.items[i].Disabled {
			s.cursor = i
			return
		}
	}
}

// Update handles selector input
func (s *Selector) Update(msg tea.Msg) (*Selector, tea.Cmd) {
	if !s.active {
		return s, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			s.move(-1)
		case "down", "j":
			s.move(1)
		case "enter":
			if s.cursor < len(s.items) && !s.items[s.cursor].Disabled {
				s.selected = s.cursor
				s.active = false
			}
		case "esc", "q":
			s.selected = -1
			s.active = false
		}
	}

	return s, nil
}

// View renders the selector
func (s *Selector) View() string {
	if !s.active {
		return ""
	}

	var b strings.Builder

	b.WriteString(HelpStyle.Render(s.title + " (↑/↓ navigate, enter select, esc cancel)"))
	b.WriteString("\n\n")

	for i, item := range s.items {
		isCursor := i == s.cursor

		if isCursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " ")
		} else {
			b.WriteString("  ")
		}

		display := item.Label
		if display == "" {
			display = item.ID
		}
		label := fmt.Sprintf("%-24s", display)
		switch {
		case item.Disabled:
			b.WriteString(SelectorDim.Render(label))
		case isCursor:
			b.WriteString(SelectorActive.Render(label))
		default:
			b.WriteString(SelectorItemStyle.Render(label))
		}

		if item.Description != "" {
			desc := item.Description
			if item.Current {
				desc += " (current)"
			}
			b.WriteString(SelectorDim.Render(desc))
		}

		b.WriteString("\n")
	}

	return b.String()
}
