package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yolodolo42/walletdash/internal/wallet"
)

// ErrCancelled is returned when the user closes the connect flow.
var ErrCancelled = errors.New("cancelled")

type connectResultMsg struct {
	state wallet.State
	err   error
}

// ConnectModel walks the user through choosing a provider and approving
// the connection in the wallet.
type ConnectModel struct {
	ctx       context.Context
	connector *wallet.Connector
	selector  Selector
	spinner   spinner.Model

	pending wallet.ProviderID
	state   wallet.State
	err     error
	done    bool
}

// NewConnectModel prepares the flow. With a preferred provider the selector
// is skipped.
func NewConnectModel(ctx context.Context, connector *wallet.Connector, descriptors []wallet.Descriptor, preferred wallet.ProviderID) *ConnectModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := &ConnectModel{
		ctx:       ctx,
		connector: connector,
		spinner:   sp,
		pending:   preferred,
	}
	if preferred != "" {
		return m
	}

	st, err := connector.Connect(ctx, "")
	m.state = st
	if err != nil {
		m.err = err
		m.done = true
		return m
	}
	m.selector = NewSelector("Connect a wallet", ProviderItems(descriptors, ""))
	return m
}

func (m *ConnectModel) connect(id wallet.ProviderID) tea.Cmd {
	return func() tea.Msg {
		st, err := m.connector.Connect(m.ctx, id)
		return connectResultMsg{state: st, err: err}
	}
}

// Init implements tea.Model.
func (m *ConnectModel) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	if m.pending != "" {
		return tea.Batch(m.spinner.Tick, m.connect(m.pending))
	}
	return nil
}

// Update implements tea.Model.
func (m *ConnectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.state = m.connector.Disconnect()
			m.err = ErrCancelled
			m.done = true
			return m, tea.Quit
		}
		if m.pending != "" || m.done {
			return m, nil
		}

		m.selector.Update(msg)
		if m.selector.Active() {
			return m, nil
		}
		if m.selector.Cancelled() {
			m.state = m.connector.CancelSelection()
			m.err = ErrCancelled
			m.done = true
			return m, tea.Quit
		}
		m.pending = wallet.ProviderID(m.selector.Selected())
		return m, tea.Batch(m.spinner.Tick, m.connect(m.pending))

	case tea.WindowSizeMsg:
		m.selector.SetWidth(msg.Width)

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectResultMsg:
		m.state = msg.state
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m *ConnectModel) View() string {
	switch {
	case m.done:
		if m.err != nil && !errors.Is(m.err, ErrCancelled) {
			return ErrorStyle.Render(SymbolCross+" "+m.err.Error()) + "\n"
		}
		if m.state.Status == wallet.StatusConnected {
			return SuccessStyle.Render(SymbolCheck+" Connected") + "\n" + RenderState(m.state)
		}
		return ""
	case m.pending != "":
		return fmt.Sprintf("%s Waiting for approval in %s...\n", m.spinner.View(), m.pending.DisplayName())
	default:
		return m.selector.View()
	}
}

// Result returns the final state and error once the flow has finished.
func (m *ConnectModel) Result() (wallet.State, error) {
	return m.state, m.err
}

// RunConnect runs the connect flow in the terminal.
func RunConnect(ctx context.Context, connector *wallet.Connector, descriptors []wallet.Descriptor, preferred wallet.ProviderID) (wallet.State, error) {
	m := NewConnectModel(ctx, connector, descriptors, preferred)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return connector.State(), err
	}
	return final.(*ConnectModel).Result()
}

// RenderState formats a connection state as aligned label/value lines.
func RenderState(st wallet.State) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(LabelStyle.Render(label) + " " + value + "\n")
	}

	status := st.Status.String()
	switch st.Status {
	case wallet.StatusConnected:
		status = SuccessStyle.Render(SymbolBullet + " " + status)
	case wallet.StatusConnecting, wallet.StatusSelectingProvider:
		status = WarningStyle.Render(SymbolBullet + " " + status)
	default:
		status = SelectorDim.Render(SymbolBullet + " " + status)
	}
	line("Status", status)
	if st.ProviderID != "" {
		line("Wallet", st.ProviderID.DisplayName())
	}
	line("Address", st.Address)
	if st.Status == wallet.StatusConnected {
		chain := st.ChainName
		if st.ChainID != "" {
			chain = fmt.Sprintf("%s (%s)", st.ChainName, st.ChainID)
		}
		line("Chain", chain)
	}
	return b.String()
}
