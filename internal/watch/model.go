// Package watch is a terminal client for a running dashboard. It follows
// the WebSocket stream and renders the ranking and a history chart.
package watch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	plot "github.com/chriskim06/drawille-go"

	"github.com/jpalmerr/rankboard/internal/server"
)

// ErrNotTerminal is returned by [Run] when stdout is not a terminal.
var ErrNotTerminal = errors.New("watch requires an interactive terminal")

const (
	defaultWidth  = 80
	defaultHeight = 20
)

var (
	selectedColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor   = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	selectedFg    = styles.NewStyle().Foreground(selectedColor)
	borderFg      = styles.NewStyle().Foreground(borderColor)
	titleFg       = styles.NewStyle().Bold(true)
	errFg         = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)

	badgeFg = map[string]styles.Style{
		"gold":   styles.NewStyle().Foreground(styles.Color("#FFD700")).Bold(true),
		"silver": styles.NewStyle().Foreground(styles.Color("#C0C0C0")).Bold(true),
		"bronze": styles.NewStyle().Foreground(styles.Color("#CD7F32")).Bold(true),
	}
)

type serverMsg struct{ server.Message }

// closedMsg ends the receive loop.
type closedMsg struct{ err error }

type errMsg struct{ err error }

// Model is the bubbletea model of the watch client.
type Model struct {
	link  Link
	title string
	help  help.Model

	width, height int

	board    *server.Leaderboard
	cursor   int
	selected string

	status    string
	statusErr bool
	err       error
}

// New returns a model reading from link.
func New(link Link, title string) *Model {
	return &Model{
		link:   link,
		title:  title,
		help:   help.New(),
		width:  defaultWidth,
		height: defaultHeight,
	}
}

// Run connects to url and runs the client until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, url, title string) error {
	if !term.IsTerminal(os.Stdout.Fd()) {
		return ErrNotTerminal
	}

	link, err := Dial(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = link.Close() }()

	p := tui.NewProgram(New(link, title), tui.WithAltScreen(), tui.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tui.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (m *Model) Init() tui.Cmd {
	return m.listen()
}

// listen waits for the next server message.
func (m *Model) listen() tui.Cmd {
	link := m.link
	return func() tui.Msg {
		msg, err := link.Receive()
		if err != nil {
			return closedMsg{err}
		}
		return serverMsg{msg}
	}
}

func (m *Model) send(cmd server.Command) tui.Cmd {
	link := m.link
	return func() tui.Msg {
		if err := link.Send(cmd); err != nil {
			return errMsg{fmt.Errorf("send %s: %w", cmd.Type, err)}
		}
		return nil
	}
}

func (m *Model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case serverMsg:
		m.handle(msg.Message)
		return m, m.listen()
	case closedMsg:
		m.err = fmt.Errorf("connection closed: %w", msg.err)
		return m, nil
	case errMsg:
		m.status, m.statusErr = msg.err.Error(), true
		return m, nil
	case tui.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tui.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tui.Quit
		case key.Matches(msg, keys.Up):
			m.move(-1)
		case key.Matches(msg, keys.Down):
			m.move(1)
		case key.Matches(msg, keys.Series):
			if next, ok := m.nextSeries(); ok {
				return m, m.send(server.Command{Type: server.CommandSeries, Key: next})
			}
		case key.Matches(msg, keys.Remove):
			if m.selected != "" {
				return m, m.send(server.Command{Type: server.CommandRemove, Name: m.selected})
			}
		}
	}
	return m, nil
}

func (m *Model) handle(msg server.Message) {
	switch msg.Type {
	case server.MessageFrame:
		if msg.Leaderboard == nil {
			return
		}
		m.board = msg.Leaderboard
		m.syncCursor()
	case server.MessageStatus:
		m.status, m.statusErr = msg.Text, false
	case server.MessageError:
		m.status, m.statusErr = msg.Text, true
	}
}

// syncCursor keeps the selection on the same entity across frames, falling
// back to the nearest row when it left the list.
func (m *Model) syncCursor() {
	entries := m.board.Entries
	if len(entries) == 0 {
		m.cursor, m.selected = 0, ""
		return
	}
	for i, e := range entries {
		if e.Name == m.selected {
			m.cursor = i
			return
		}
	}
	m.cursor = min(max(m.cursor, 0), len(entries)-1)
	m.selected = entries[m.cursor].Name
}

func (m *Model) move(delta int) {
	if m.board == nil || len(m.board.Entries) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.board.Entries)-1)
	m.selected = m.board.Entries[m.cursor].Name
}

// nextSeries returns the series after the current one, wrapping around.
func (m *Model) nextSeries() (string, bool) {
	if m.board == nil || len(m.board.Keys) < 2 {
		return "", false
	}
	for i, k := range m.board.Keys {
		if k == m.board.Series {
			return m.board.Keys[(i+1)%len(m.board.Keys)], true
		}
	}
	return m.board.Keys[0], true
}

func (m *Model) View() string {
	parts := []string{m.header()}

	if m.board == nil {
		parts = append(parts, borderFg.Render("waiting for the first frame..."))
	} else {
		leftW := max(30, m.width*45/100)
		rightW := max(10, m.width-leftW)
		left := styles.NewStyle().Width(leftW).Render(m.list())
		parts = append(parts, styles.JoinHorizontal(styles.Top, left, m.chart(rightW-2, max(4, m.height-6))))
	}

	switch {
	case m.err != nil:
		parts = append(parts, errFg.Render("ERROR: "+m.err.Error()))
	case m.status != "" && m.statusErr:
		parts = append(parts, errFg.Render(m.status))
	case m.status != "":
		parts = append(parts, borderFg.Render(m.status))
	}

	parts = append(parts, m.help.View(keys))
	return styles.JoinVertical(styles.Left, parts...)
}

func (m *Model) header() string {
	var sb strings.Builder
	sb.WriteString(titleFg.Render(m.title))
	if m.board == nil {
		return sb.String()
	}
	for _, k := range m.board.Keys {
		sb.WriteString("  ")
		if k == m.board.Series {
			sb.WriteString(selectedFg.Underline(true).Render(k))
		} else {
			sb.WriteString(borderFg.Render(k))
		}
	}
	if top := m.board.Top; top != nil {
		sb.WriteString("\n")
		sb.WriteString(borderFg.Render("top: "))
		sb.WriteString(badgeFg["gold"].Render(top.Name))
		sb.WriteString(" " + top.Display)
	}
	return sb.String()
}

func (m *Model) list() string {
	entries := m.board.Entries
	if len(entries) == 0 {
		return borderFg.Render("no entities")
	}

	nameW := 0
	for _, e := range entries {
		nameW = max(nameW, len(e.Name))
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		row := fmt.Sprintf("#%-3d %-*s %s", e.Rank, nameW, e.Name, e.Display)
		if style, ok := badgeFg[e.Badge]; ok {
			row = style.Render(row)
		}
		if i == m.cursor {
			lines[i] = selectedFg.Render("▌") + row
		} else {
			lines[i] = " " + row
		}
	}
	return strings.Join(lines, "\n")
}

// chart plots the history of every listed entity with the selected one
// drawn last in the highlight color.
func (m *Model) chart(w, h int) string {
	data, colors := m.chartData()
	if data == nil {
		return plotStyle.Render(borderFg.Render(fmt.Sprintf("%-*s", w, "no movement yet")))
	}

	p := plot.NewCanvas(w, h)
	p.NumDataPoints = len(data[0])
	p.ShowAxis = false
	p.LineColors = colors
	p.Fill(data)

	label := selectedFg.Render(m.selected) + borderFg.Render(fmt.Sprintf(" %s, %d points", m.board.Series, len(data[0])))
	return plotStyle.Render(styles.JoinVertical(styles.Top, p.String(), label))
}

// chartData aligns every history to the same length by repeating its
// first point. It returns nil when there is nothing to draw.
func (m *Model) chartData() ([][]float64, []plot.Color) {
	var highlight, dim plot.Color
	if styles.DefaultRenderer().HasDarkBackground() {
		highlight, dim = plot.Red, plot.DimGray
	} else {
		highlight, dim = plot.Black, plot.LightGray
	}

	n := 0
	var names []string
	for _, e := range m.board.Entries {
		if h := m.board.History[e.Name]; len(h) > 0 && e.Name != m.selected {
			names = append(names, e.Name)
			n = max(n, len(h))
		}
	}
	if h := m.board.History[m.selected]; len(h) > 0 {
		names = append(names, m.selected)
		n = max(n, len(h))
	}
	if len(names) == 0 {
		return nil, nil
	}
	n = max(n, 2)

	lo, hi := math.Inf(1), math.Inf(-1)
	data := make([][]float64, len(names))
	colors := make([]plot.Color, len(names))
	for i, name := range names {
		h := m.board.History[name]
		series := make([]float64, n)
		pad := n - len(h)
		for j := range series {
			v := h[0]
			if j >= pad {
				v = h[j-pad]
			}
			series[j] = v
			lo, hi = min(lo, v), max(hi, v)
		}
		data[i] = series
		colors[i] = dim
	}
	if hi <= lo {
		return nil, nil
	}
	colors[len(colors)-1] = dim
	if names[len(names)-1] == m.selected {
		colors[len(colors)-1] = highlight
	}
	return data, colors
}
