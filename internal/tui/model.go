// Package tui is the read-only users status dashboard.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/table"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/tui/theme"
	"tasnim.dev/iamctl/internal/users"
	"tasnim.dev/iamctl/internal/utils"
)

// Lister supplies the user inventory.
type Lister interface {
	List(ctx context.Context) ([]users.Inventory, error)
}

// Messages
type inventoryMsg struct {
	rows []users.Inventory
	err  error
}
type errMsg struct{ err error }

// filters cycle with "f"; the empty filter shows everyone.
var filters = []users.Status{"", users.StatusBound, users.StatusUnbound, users.StatusPending, users.StatusMissing}

// Model holds the TUI state.
type Model struct {
	lister    Lister
	profile   string
	accountID string
	rows      []users.Inventory
	visible   []users.Inventory
	err       error
	partial   error
	loading   bool
	spinner   spinner.Model
	table     table.Model
	width     int
	height    int
	filter    int
	now       func() time.Time

	// User drill-down
	detail string // non-empty = showing one user
}

// NewModel creates a new TUI model.
func NewModel(lister Lister, profile string, accountID string) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithWidth(80),
	)
	t.SetStyles(theme.DefaultTableStyles())

	return Model{
		lister:    lister,
		profile:   profile,
		accountID: accountID,
		loading:   true,
		spinner:   theme.NewSpinner(),
		table:     t,
		width:     80,
		height:    24,
		now:       time.Now,
	}
}

func columns(width int) []table.Column {
	const user, status, keys, console = 24, 10, 6, 8
	groups := width - user - status - keys - console - 10
	if groups < 16 {
		groups = 16
	}
	return []table.Column{
		{Title: "User", Width: user},
		{Title: "Status", Width: status},
		{Title: "Groups", Width: groups},
		{Title: "Keys", Width: keys},
		{Title: "Console", Width: console},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.lister.List(context.Background())
		if rows == nil && err != nil {
			return errMsg{err: err}
		}
		return inventoryMsg{rows: rows, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.err = nil
			m.detail = ""
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		case "esc":
			if m.detail != "" {
				m.detail = ""
				return m, nil
			}
		case "enter":
			if m.detail == "" && len(m.visible) > 0 {
				if i := m.table.Cursor(); i >= 0 && i < len(m.visible) {
					m.detail = m.visible[i].Name
					return m, nil
				}
			}
		case "f":
			if m.detail == "" {
				m.filter = (m.filter + 1) % len(filters)
				m = m.applyFilter()
				return m, nil
			}
		}

	case inventoryMsg:
		m.rows = msg.rows
		m.partial = msg.err
		m.loading = false
		m = m.applyFilter()
		return m, nil

	case errMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.resizeTable()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) applyFilter() Model {
	want := filters[m.filter]
	var visible []users.Inventory
	for _, inv := range m.rows {
		if want == "" || inv.Status == want {
			visible = append(visible, inv)
		}
	}
	m.visible = visible
	m.table.SetRows(m.buildRows())
	m.table.SetCursor(0)
	return m
}

func (m Model) buildRows() []table.Row {
	rows := make([]table.Row, len(m.visible))
	for i, inv := range m.visible {
		console := ""
		if inv.Console {
			console = "yes"
		}
		rows[i] = table.Row{inv.Name, string(inv.Status), utils.ListOrDash(inv.Groups), strconv.Itoa(len(inv.Keys)), console}
	}
	return rows
}

func (m Model) resizeTable() Model {
	contentWidth := m.width - 4 // dashboardStyle Padding(1,2)
	m.table.SetColumns(columns(contentWidth))
	m.table.SetWidth(contentWidth)

	tableHeight := m.height - 12 // header+metrics+help
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetHeight(tableHeight)
	return m
}

func (m Model) renderHeader() string {
	profileText := "default"
	if m.profile != "" {
		profileText = m.profile
	}
	headerParts := []string{
		titleStyle.Render("IAM Users"),
		"   ",
	}
	if m.accountID != "" {
		headerParts = append(headerParts,
			metricLabelStyle.Render("account: ")+profileStyle.Render(m.accountID),
			"   ",
		)
	}
	headerParts = append(headerParts,
		metricLabelStyle.Render("profile: ")+profileStyle.Render(profileText),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, headerParts...)
}

func (m Model) renderMetrics() string {
	counts := map[users.Status]int{}
	atCap := 0
	for _, inv := range m.rows {
		counts[inv.Status]++
		if len(inv.Keys) >= credentials.MaxAccessKeys {
			atCap++
		}
	}
	parts := []string{
		metricLabelStyle.Render("Users: ") + metricValueStyle.Render(strconv.Itoa(len(m.rows))),
	}
	for _, s := range filters[1:] {
		parts = append(parts, metricLabelStyle.Render(string(s)+": ")+
			lipgloss.NewStyle().Bold(true).Foreground(theme.StatusColor(string(s))).Render(strconv.Itoa(counts[s])))
	}
	line := strings.Join(parts, "    ")
	if atCap > 0 {
		line += "\n" + warnValueStyle.Render(fmt.Sprintf("%d user(s) at the %d access key limit", atCap, credentials.MaxAccessKeys))
	}
	if m.partial != nil {
		line += "\n" + errorStyle.Render(fmt.Sprintf("Some users could not be read: %v", m.partial))
	}
	filter := "all"
	if f := filters[m.filter]; f != "" {
		filter = string(f)
	}
	return line + "\n" + metricLabelStyle.Render("filter: "+filter)
}

func (m Model) buildUserDetail() string {
	var inv *users.Inventory
	for i := range m.rows {
		if m.rows[i].Name == m.detail {
			inv = &m.rows[i]
		}
	}
	if inv == nil {
		return metricLabelStyle.Render("No data for "+m.detail) + "\n"
	}

	db := utils.NewDetailBuilder(16, theme.SectionStyle)
	db.Section(inv.Name)
	db.Row("Status", theme.RenderStatus(string(inv.Status)))
	db.Row("Path", inv.Path)
	db.Row("Configured", strconv.FormatBool(inv.Configured))
	db.Row("Console", strconv.FormatBool(inv.Console))
	db.Bullets("Groups", inv.Groups)
	db.Blank()
	db.Section("Access keys")
	if len(inv.Keys) == 0 {
		db.Row("", "—")
	}
	now := m.now()
	for _, k := range inv.Keys {
		db.Row(k.ID, fmt.Sprintf("%s  created %s (%s ago)", theme.RenderStatus(k.Status),
			utils.TimeOrDash(k.CreatedAt, utils.DateTime), utils.Age(k.CreatedAt, now)))
	}
	return db.String() + "\n"
}

func (m Model) View() tea.View {
	header := m.renderHeader()

	var content string
	if m.loading {
		content = dashboardStyle.Render(
			header + "\n\n" + m.spinner.View() + " Fetching users...\n",
		)
	} else if m.err != nil {
		content = dashboardStyle.Render(
			header + "\n\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) +
				"\n\n" + helpStyle.Render("Press r to retry • q to quit"),
		)
	} else if len(m.rows) == 0 {
		content = dashboardStyle.Render(header + "\n\nNo users found.\n" +
			helpStyle.Render("r refresh • q quit"))
	} else if m.detail != "" {
		content = dashboardStyle.Render(
			headerStyle.Render(header) + "\n\n" +
				m.buildUserDetail() +
				helpStyle.Render("Esc back • q quit"),
		)
	} else {
		content = dashboardStyle.Render(
			headerStyle.Render(header) + "\n\n" +
				m.renderMetrics() + "\n\n" +
				m.table.View() + "\n" +
				helpStyle.Render("Enter details • f filter • r refresh • q quit"),
		)
	}

	v := tea.NewView(content)
	v.AltScreen = true
	return v
}
