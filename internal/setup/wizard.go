package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/yolodolo42/walletdash/internal/auth"
)

// WizardStep represents the current step in the wizard
type WizardStep int

const (
	StepWelcome WizardStep = iota
	StepField
	StepVerifying
	StepComplete
)

// SetupResult contains the result of the setup wizard
type SetupResult struct {
	Saved     []auth.Field
	Verified  bool
	Cancelled bool
}

// WizardModel collects OKX API credentials and stores them in auth.json
type WizardModel struct {
	step     WizardStep
	manager  *auth.Manager
	verify   Verifier
	quitting bool

	fields []auth.FieldInfo
	inputs []textinput.Model
	index  int

	fieldError  string
	verifyError string
	verified    bool

	spinner  spinner.Model
	progress progress.Model

	result *SetupResult
}

type verifiedMsg struct {
	err error
}

// NewWizard creates a new wizard. Only fields that do not resolve from the
// environment, config or auth.json are asked for unless all is set.
func NewWizard(manager *auth.Manager, verify Verifier, all bool) *WizardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	fields := auth.AllFields()
	if !all {
		fields = DetectSetupStatus(manager).Missing
	}

	inputs := make([]textinput.Model, len(fields))
	for i, info := range fields {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = info.Description
		in.CharLimit = 200
		in.Width = 50
		if info.Secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		inputs[i] = in
	}

	return &WizardModel{
		step:     StepWelcome,
		manager:  manager,
		verify:   verify,
		fields:   fields,
		inputs:   inputs,
		spinner:  sp,
		progress: prog,
	}
}

// Init initializes the wizard
func (m WizardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// Update handles messages
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.result = &SetupResult{Cancelled: true}
			m.quitting = true
			return m, tea.Quit
		}

		switch m.step {
		case StepWelcome:
			if msg.Type == tea.KeyEnter {
				if len(m.fields) == 0 {
					m.step = StepVerifying
					return m, m.verifyCredentials()
				}
				m.step = StepField
				return m, m.inputs[0].Focus()
			}
			return m, nil

		case StepField:
			switch msg.Type {
			case tea.KeyEnter:
				return m.nextField()
			case tea.KeyEsc:
				return m.prevField()
			}
			// Fall through to let input update happen

		case StepVerifying:
			return m, nil

		case StepComplete:
			switch msg.Type {
			case tea.KeyEnter:
				m.result = &SetupResult{Saved: m.savedFields(), Verified: m.verified}
				m.quitting = true
				return m, tea.Quit
			case tea.KeyEsc:
				if len(m.fields) > 0 && !m.verified {
					m.step = StepField
					m.index = 0
					m.verifyError = ""
					return m, m.inputs[0].Focus()
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.progress.Width = min(40, msg.Width-20)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case verifiedMsg:
		m.step = StepComplete
		m.verified = msg.err == nil
		m.verifyError = ""
		if msg.err != nil {
			m.verifyError = formatVerifyError(msg.err)
		}
		return m, nil
	}

	if m.step == StepField {
		var cmd tea.Cmd
		m.inputs[m.index], cmd = m.inputs[m.index].Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m WizardModel) nextField() (tea.Model, tea.Cmd) {
	info := m.fields[m.index]
	if strings.TrimSpace(m.inputs[m.index].Value()) == "" {
		m.fieldError = info.Label + " is required"
		return m, nil
	}
	m.fieldError = ""
	m.inputs[m.index].Blur()

	if m.index < len(m.fields)-1 {
		m.index++
		return m, m.inputs[m.index].Focus()
	}

	if err := m.saveCredentials(); err != nil {
		m.fieldError = err.Error()
		return m, nil
	}
	m.step = StepVerifying
	return m, m.verifyCredentials()
}

func (m WizardModel) prevField() (tea.Model, tea.Cmd) {
	m.fieldError = ""
	m.inputs[m.index].Blur()
	if m.index == 0 {
		m.step = StepWelcome
		return m, nil
	}
	m.index--
	return m, m.inputs[m.index].Focus()
}

func (m WizardModel) savedFields() []auth.Field {
	var saved []auth.Field
	for i, info := range m.fields {
		if m.inputs[i].Value() != "" {
			saved = append(saved, info.Field)
		}
	}
	return saved
}

// View renders the wizard
func (m WizardModel) View() string {
	if m.quitting {
		if m.result != nil && m.result.Cancelled {
			return DimStyle.Render("\n  Setup cancelled.\n\n")
		}
		return ""
	}

	var b strings.Builder
	if m.step == StepField {
		b.WriteString("\n")
		b.WriteString(m.renderProgress())
		b.WriteString("\n")
	}

	switch m.step {
	case StepWelcome:
		b.WriteString(m.viewWelcome())
	case StepField:
		b.WriteString(m.viewField())
	case StepVerifying:
		b.WriteString(fmt.Sprintf("\n  %s Checking credentials with OKX...\n", m.spinner.View()))
	case StepComplete:
		b.WriteString(m.viewComplete())
	}
	return b.String()
}

func (m WizardModel) renderProgress() string {
	percent := float64(m.index) / float64(len(m.fields))
	return "  " + m.progress.ViewAs(percent) + "\n" +
		StepStyle.Render(fmt.Sprintf("  Step %d of %d", m.index+1, len(m.fields)))
}

func (m WizardModel) viewWelcome() string {
	var body string
	if len(m.fields) == 0 {
		body = SuccessStyle.Render("✓ All OKX credentials are already configured.") + "\n" +
			"  Press Enter to verify them."
	} else {
		names := make([]string, 0, len(m.fields))
		for _, info := range m.fields {
			names = append(names, info.Label)
		}
		body = "You will be asked for: " + strings.Join(names, ", ") + ".\n" +
			DimStyle.Render("Values are stored in auth.json with owner-only permissions.")
	}

	box := BoxStyle.Render(
		TitleStyle.Render("walletdash setup") + "\n" +
			SubtitleStyle.Render("OKX Web3 API credentials") + "\n\n" + body,
	)
	return "\n\n" + box + "\n\n" + HelpStyle.Render("  Press Enter to continue...")
}

func (m WizardModel) viewField() string {
	info := m.fields[m.index]

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("  " + info.Label))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("  or set %s\n\n", info.EnvVar)))
	b.WriteString("  ")
	b.WriteString(m.inputs[m.index].View())
	b.WriteString("\n")

	if m.fieldError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ErrorStyle.Render("✗ "+m.fieldError)))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("  Enter to continue • Esc back"))
	return b.String()
}

func (m WizardModel) viewComplete() string {
	var content string
	if m.verified {
		content = TitleStyle.Render("You're all set!") + "\n\n" +
			SuccessStyle.Render("✓ OKX accepted the credentials.")
	} else {
		content = TitleStyle.Render("Credentials saved") + "\n\n" +
			ErrorStyle.Render("✗ "+m.verifyError)
	}

	help := "  Press Enter to finish..."
	if !m.verified && len(m.fields) > 0 {
		help = "  Enter to finish anyway • Esc to edit"
	}
	return "\n\n" + BoxStyle.Render(content) + "\n\n" + HelpStyle.Render(help)
}

// RunWizard runs the setup wizard and returns the result
func RunWizard(manager *auth.Manager, verify Verifier, all bool) (*SetupResult, error) {
	m := NewWizard(manager, verify, all)

	p := tea.NewProgram(*m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	return finalModel.(WizardModel).result, nil
}

// PrintEnvInstructions prints setup instructions for non-interactive environments
func PrintEnvInstructions() {
	fmt.Println("walletdash needs OKX API credentials for signed requests.")
	fmt.Println("")
	fmt.Println("Set these environment variables:")
	for _, info := range auth.AllFields() {
		fmt.Printf("  %s=...\n", info.EnvVar)
	}
	fmt.Println("")
	fmt.Println("Or run `walletdash setup` interactively.")
}

// IsInteractive returns true if running in a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
