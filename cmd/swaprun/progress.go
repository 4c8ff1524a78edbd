// ====================================
// File: cmd/swaprun/progress.go
// ====================================
package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleActive  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleHeader  = lipgloss.NewStyle().Bold(true)
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// progressKeyMap is the renderer's keybinding set, kept as bubbles/key
// bindings rather than raw string comparisons so the footer is rendered
// from the binding's own help text.
type progressKeyMap struct {
	Quit key.Binding
}

func defaultProgressKeyMap() progressKeyMap {
	return progressKeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
	}
}

// walletState tracks the most recently observed lifecycle event per
// wallet so the renderer can redraw the whole fleet each frame.
type walletState struct {
	lastKind swap.EventKind
	attempt  int
	errKind  swap.ErrorKind
}

// progressModel is a bubbletea Model consuming ProgressBus events and
// rendering one line per wallet.
type progressModel struct {
	events  <-chan swap.LifecycleEvent
	wallets map[int]*walletState
	keys    progressKeyMap
	done    bool
}

func newProgressModel(events <-chan swap.LifecycleEvent) *progressModel {
	return &progressModel{events: events, wallets: make(map[int]*walletState), keys: defaultProgressKeyMap()}
}

type eventMsg swap.LifecycleEvent
type busClosedMsg struct{}

func (m *progressModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *progressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg(evt)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		evt := swap.LifecycleEvent(msg)
		state, ok := m.wallets[evt.WalletIndex]
		if !ok {
			state = &walletState{}
			m.wallets[evt.WalletIndex] = state
		}
		state.lastKind = evt.Kind
		if evt.Kind == swap.EventRetryScheduled {
			state.attempt = evt.Attempt
		}
		if evt.Kind == swap.EventFailed || evt.Kind == swap.EventSkipped {
			state.errKind = evt.ErrorKind
		}
		return m, m.waitForEvent()

	case busClosedMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder
	b.WriteString(styleHeader.Render("swap run progress"))
	b.WriteString("\n")

	indices := make([]int, 0, len(m.wallets))
	for idx := range m.wallets {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		state := m.wallets[idx]
		b.WriteString(fmt.Sprintf("  wallet %-4d %s\n", idx, renderState(state)))
	}

	if m.done {
		b.WriteString("\nrun complete\n")
	} else {
		b.WriteString("\n" + styleHelp.Render(m.keys.Quit.Help().Key+": "+m.keys.Quit.Help().Desc) + "\n")
	}
	return b.String()
}

func renderState(s *walletState) string {
	switch s.lastKind {
	case swap.EventVerified:
		return styleOK.Render("success")
	case swap.EventFailed:
		return styleFailed.Render(fmt.Sprintf("failed (%s)", s.errKind))
	case swap.EventSkipped:
		return styleSkipped.Render(fmt.Sprintf("skipped (%s)", s.errKind))
	case swap.EventRetryScheduled:
		return styleActive.Render(fmt.Sprintf("retrying (attempt %d)", s.attempt))
	default:
		return styleActive.Render(string(s.lastKind))
	}
}
