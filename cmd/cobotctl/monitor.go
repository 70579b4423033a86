package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cobotkit/cobot/pkg/cobot"
)

type MonitorCommand struct {
	Sim  bool   `long:"sim" description:"Drive the bundled simulator instead of hardware"`
	Port string `long:"port" description:"Serial port (overrides config)"`
	Baud int    `long:"baud" description:"Baud rate (overrides config)"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	tableHeight  = 8 // joint table
	footerHeight = 7 // log box
	maxLogs      = 5 // log messages to keep
	borderSize   = 2 // chart border
)

// Joint colors - one distinct color per axis, in servo order.
var jointColors = []string{
	"196", // red
	"208", // orange
	"226", // yellow
	"46",  // green
	"51",  // cyan
	"201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	movingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

type monitorModel struct {
	client   *cobot.Client
	chart    *streamlinechart.Model
	width    int
	height   int
	state    cobot.State
	snapshot []cobot.JointState
	logs     []string
	quitting bool
}

// Messages driving the model
type tickMsg time.Time
type stateMsg cobot.State
type logMsg string

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForState(client *cobot.Client) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-client.States())
	}
}

func (m *monitorModel) addLog(msg string) {
	stamped := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
	m.logs = append(m.logs, stamped)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default before the first WindowSizeMsg
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - tableHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(client *cobot.Client) monitorModel {
	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(cobot.DefaultMinAngle, cobot.DefaultMaxAngle),
	)

	snapshot := client.Snapshot()
	for i, js := range snapshot {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[i%len(jointColors)]))
		chart.SetDataSetStyles(js.Name, runes.ThinLineStyle, style)
	}

	return monitorModel{
		client:   client,
		chart:    &chart,
		state:    client.State(),
		snapshot: snapshot,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tick(m.client.Config().PollInterval.Std()),
		waitForState(m.client),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case " ":
			return m, m.stopAll()
		case "c":
			return m, m.calibrateAll()
		}

	case tickMsg:
		m.snapshot = m.client.Snapshot()
		if m.state == cobot.Ready {
			for _, js := range m.snapshot {
				m.chart.PushDataSet(js.Name, js.MeasuredAngle)
			}
			m.chart.DrawAll()
		}
		return m, tick(m.client.Config().PollInterval.Std())

	case stateMsg:
		m.state = cobot.State(msg)
		m.addLog("session " + m.state.String())
		return m, waitForState(m.client)

	case logMsg:
		m.addLog(string(msg))
		return m, nil
	}

	return m, nil
}

func (m monitorModel) stopAll() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.StopAll(context.Background(), false); err != nil {
			return logMsg(fmt.Sprintf("stop all: %v", err))
		}
		return logMsg("all joints stopped")
	}
}

func (m monitorModel) calibrateAll() tea.Cmd {
	client := m.client
	mask := uint8(1<<client.JointCount() - 1)
	return func() tea.Msg {
		if err := client.Calibrate(context.Background(), mask); err != nil {
			return logMsg(fmt.Sprintf("calibrate: %v", err))
		}
		return logMsg("calibration complete")
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	// Header
	cfg := m.client.Config()
	sb.WriteString(titleStyle.Render("COBOT Monitor"))
	sb.WriteString(fmt.Sprintf(" - %s@%d - %s", cfg.Port, cfg.Baud, m.state))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	// Joint table
	sb.WriteString(m.renderTable())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("space: stop all  c: calibrate  q: quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m monitorModel) renderLegend() string {
	var items []string
	for i, js := range m.snapshot {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[i%len(jointColors)])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+js.Name)
	}
	return strings.Join(items, "  ")
}

func (m monitorModel) renderTable() string {
	var sb strings.Builder
	sb.WriteString(statusStyle.Render(fmt.Sprintf("%-14s %10s %10s %8s %8s", "joint", "measured", "target", "speed", "")))
	sb.WriteString("\n")
	for _, js := range m.snapshot {
		flag := ""
		if js.Moving() {
			flag = movingStyle.Render("moving")
		}
		sb.WriteString(fmt.Sprintf("%-14s %9.1f° %9.1f° %8.1f %8s\n",
			js.Name, js.MeasuredAngle, js.CommandedAngle, js.CommandedSpeed, flag))
	}
	return sb.String()
}

func (c *MonitorCommand) Execute(args []string) error {
	cfg := loadConfig()
	if c.Port != "" {
		cfg.Port = c.Port
	}
	if c.Baud != 0 {
		cfg.Baud = c.Baud
	}

	ctx := context.Background()
	client, err := bringUp(ctx, cfg, c.Sim)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	p := tea.NewProgram(initialMonitorModel(client), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
