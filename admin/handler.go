package admin

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"

	"swiftkernel/kernel"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	successKindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorKindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)

type tickMsg time.Time

// cellItem adapts a recorded cell outcome for display in a bubbles/list.
type cellItem struct {
	executionCount int
	kind           string
	message        string
}

func (i cellItem) FilterValue() string { return i.message }
func (i cellItem) Title() string       { return fmt.Sprintf("[%d] %s", i.executionCount, i.kind) }
func (i cellItem) Description() string { return i.message }

// cellDelegate renders cellItem rows, coloring the kind by success/failure.
type cellDelegate struct{}

func (cellDelegate) Height() int                          { return 2 }
func (cellDelegate) Spacing() int                         { return 0 }
func (cellDelegate) Update(tea.Msg, *list.Model) tea.Cmd  { return nil }
func (cellDelegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	item, ok := li.(cellItem)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = cursorStyle.Render("> ")
	}

	kindStyle := successKindStyle
	if item.kind != "success_value" && item.kind != "success_void" {
		kindStyle = errorKindStyle
	}

	fmt.Fprintf(w, "%s[%d] %s\n%s  %s", cursor, item.executionCount, kindStyle.Render(item.kind), cursor, dimStyle.Render(item.message))
}

// statusModel renders a live snapshot of one kernel's state; scrolling the
// cell list is the only interaction besides the interrupt confirm dialog, so
// this never mutates session data outside of that one guarded action.
type statusModel struct {
	kernel      *kernel.Kernel
	cellList    list.Model
	interrupted bool

	confirming    bool
	interruptForm *huh.Form
}

func newStatusModel(k *kernel.Kernel) statusModel {
	l := list.New(nil, cellDelegate{}, 60, 12)
	l.Title = "recent cells"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	return statusModel{kernel: k, cellList: l}
}

func (m statusModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func newInterruptForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title("Send interrupt to the running Swift process?").
				Description("This mirrors a Jupyter kernel interrupt request.").
				Affirmative("Interrupt").
				Negative("Cancel"),
		),
	)
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.confirming {
		form, cmd := m.interruptForm.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.interruptForm = f
		}
		if m.interruptForm.State == huh.StateCompleted {
			if m.interruptForm.GetBool("confirm") {
				m.kernel.Interrupt()
				m.interrupted = true
			}
			m.confirming = false
			m.interruptForm = nil
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.cellList.SetSize(msg.Width-4, msg.Height-14)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "i":
			m.confirming = true
			m.interruptForm = newInterruptForm()
			return m, m.interruptForm.Init()
		}
		var cmd tea.Cmd
		m.cellList, cmd = m.cellList.Update(msg)
		return m, cmd
	case tickMsg:
		m.refreshCells()
		return m, tick()
	}
	return m, nil
}

func (m *statusModel) refreshCells() {
	sess := m.kernel.Session()
	cells := sess.Cells
	start := 0
	if len(cells) > 20 {
		start = len(cells) - 20
	}
	items := make([]list.Item, 0, len(cells)-start)
	for _, c := range cells[start:] {
		msg := c.Outcome.Message
		if len(msg) > 60 {
			msg = msg[:60] + "…"
		}
		items = append(items, cellItem{executionCount: c.ExecutionCount, kind: c.Outcome.Kind.String(), message: msg})
	}
	m.cellList.SetItems(items)
}

func (m statusModel) View() string {
	if m.confirming {
		return m.interruptForm.View()
	}

	out := titleStyle.Render("swiftkernel admin console") + "\n\n"

	status := okStyle.Render("running")
	if m.kernel.Degraded() {
		status = degradedStyle.Render("degraded — repl process unavailable")
	}
	out += fmt.Sprintf("REPL status: %s\n", status)
	if m.interrupted {
		out += dimStyle.Render("last action: sent interrupt") + "\n"
	}
	out += "\n"

	sess := m.kernel.Session()
	out += fmt.Sprintf("Session %s, started %s\n", sess.ID, sess.StartedAt.Format(time.RFC3339))
	out += fmt.Sprintf("Executions so far: %d\n\n", sess.ExecutionCount())

	out += headerStyle.Render("Installed packages") + "\n"
	if len(sess.InstalledPackages) == 0 {
		out += dimStyle.Render("none") + "\n"
	}
	for _, p := range sess.InstalledPackages {
		out += fmt.Sprintf("  %s\n", p)
	}
	out += "\n"

	out += m.cellList.View()
	out += "\n" + dimStyle.Render("i: interrupt   q: disconnect")
	return out
}

// teaHandler builds one statusModel per SSH session; the console shares the
// kernel's live state across concurrently connected operators, and the only
// write path is the huh-gated interrupt confirmation.
func (s *Server) teaHandler(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	m := newStatusModel(s.kernel)
	m.refreshCells()
	return m, []tea.ProgramOption{tea.WithAltScreen()}
}
