package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// state represents the current phase of a command.
type state int

const (
	stateInit       state = iota
	stateWorking          // backend call in progress
	stateRefreshing       // single-flight refresh in progress
	stateSuccess          // all done
	stateError            // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for catalog-admin commands.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	working string
	queued  int

	// Result display
	products []ProductRow
	saved    *MsgProductSaved
	session  *SessionInfo
	summary  string
	errMsg   string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("228"))

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── session messages ───────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgSessionFound:
		m.addStatus(statusOK, fmt.Sprintf("Signed in as %s (%s)", orUnknown(msg.Email), orUnknown(msg.Role)))
		return m, nil

	case MsgSessionMissing:
		m.addStatus(statusInfo, "No stored session")
		return m, nil

	case MsgSessionRejected:
		m.addStatus(statusWarn, fmt.Sprintf("Stored session rejected: %v", msg.Err))
		return m, nil

	case MsgLoggingIn:
		m.state = stateWorking
		m.working = "Logging in as " + msg.Email
		return m, nil

	case MsgLoginOK:
		m.addStatus(statusOK, fmt.Sprintf("Login successful: %s (%s)", msg.Email, msg.Role))
		return m, nil

	case MsgLoggedOut:
		m.addStatus(statusOK, "Logged out, session removed")
		return m, nil

	case MsgWorking:
		m.state = stateWorking
		m.working = msg.What
		return m, nil

	// ── refresh messages ───────────────────────────────────────────────────

	case MsgAccessTokenRejected:
		m.addStatus(statusWarn, "Access token rejected (401) on "+msg.Path)
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusInfo, "Refreshing access token...")
		return m, nil

	case MsgRequestQueued:
		m.queued++
		m.addStatus(statusInfo, "Waiting for refresh: "+msg.Path)
		return m, nil

	case MsgRefreshOK:
		m.state = stateWorking
		m.queued = 0
		m.addStatus(statusOK, "Token refreshed successfully")
		return m, nil

	case MsgRefreshFailed:
		m.state = stateWorking
		m.queued = 0
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed, session cleared: %v", msg.Err))
		return m, nil

	case MsgRequestReplayed:
		m.addStatus(statusOK, "Retrying "+msg.Path+" with new token")
		return m, nil

	// ── results ────────────────────────────────────────────────────────────

	case MsgProducts:
		m.products = msg.Rows
		return m, nil

	case MsgProductSaved:
		m.saved = &msg
		return m, nil

	case MsgSession:
		m.session = &msg.Info
		return m, nil

	case MsgDone:
		m.summary = msg.Summary
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown while a command is running.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Catalog Admin  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing access token...")
		if m.queued > 0 {
			b.WriteString(styleDim.Render(fmt.Sprintf("  %d request(s) waiting", m.queued)))
		}
		b.WriteString("\n")

	case stateWorking:
		b.WriteString(m.spinner.View())
		b.WriteString(" " + m.working + "...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown after the command completed.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	if m.summary != "" {
		b.WriteString(styleOK.Render("  ✓ " + m.summary))
		b.WriteString("\n\n")
	}

	if m.session != nil {
		b.WriteString(m.viewSession())
	}
	if m.saved != nil {
		b.WriteString(styleBold.Render("Product " + strconv.FormatInt(m.saved.Row.ID, 10) + " " + m.saved.Action + ": "))
		b.WriteString(m.saved.Row.Name + " (" + m.saved.Row.Price + ")\n")
	}
	if m.products != nil {
		b.WriteString(m.viewProducts())
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewSession() string {
	var b strings.Builder
	info := m.session

	b.WriteString(styleBold.Render("Server:     "))
	b.WriteString(info.Server + "\n")
	b.WriteString(styleBold.Render("Store:      "))
	b.WriteString(info.Store + "\n")
	if !info.LoggedIn {
		b.WriteString(styleDim.Render("No stored session") + "\n")
		return b.String()
	}
	b.WriteString(styleBold.Render("User:       "))
	b.WriteString(orUnknown(info.Email) + "\n")
	b.WriteString(styleBold.Render("Role:       "))
	b.WriteString(orUnknown(info.Role) + "\n")
	b.WriteString(styleBold.Render("Expires In: "))
	b.WriteString(formatExpiry(info.ExpiresIn) + "\n")
	return b.String()
}

func (m Model) viewProducts() string {
	if len(m.products) == 0 {
		return styleDim.Render("No products.") + "\n"
	}

	idW, nameW, priceW := len("ID"), len("NAME"), len("PRICE")
	for _, p := range m.products {
		idW = max(idW, len(strconv.FormatInt(p.ID, 10)))
		nameW = max(nameW, len(p.Name))
		priceW = max(priceW, len(p.Price))
	}
	row := func(id, name, price, created string) string {
		return fmt.Sprintf("%-*s  %-*s  %*s  %s", idW, id, nameW, name, priceW, price, created)
	}

	var b strings.Builder
	b.WriteString(styleHeader.Render(row("ID", "NAME", "PRICE", "CREATED")))
	b.WriteString("\n")
	for _, p := range m.products {
		b.WriteString(row(strconv.FormatInt(p.ID, 10), p.Name, p.Price, styleDim.Render(p.Created)))
		b.WriteString("\n")
	}
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Command failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// formatDuration formats a duration as "Xh Ym", "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
