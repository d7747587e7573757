package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	cl "afterhours/internal/cli"
	"afterhours/internal/game"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dayStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	nightStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	deadStyle   = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	headerStyle = lipgloss.NewStyle().Underline(true)
)

func newPlayCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Live trading session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			feed, err := newClient(apiBase).DialFeed(ctx, sess.Token)
			cancel()
			if err != nil {
				return err
			}
			defer feed.Close()

			m := newPlayModel(sess.Name, feed)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

type feedMsg cl.FeedMessage

type feedClosedMsg struct{}

func waitFeed(feed *cl.Feed) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-feed.Msgs
		if !ok {
			return feedClosedMsg{}
		}
		return feedMsg(msg)
	}
}

type playModel struct {
	player string
	feed   *cl.Feed
	input  textinput.Model

	snap   *game.Snapshot
	status string
	isErr  bool
	closed bool
}

func newPlayModel(player string, feed *cl.Feed) playModel {
	input := textinput.New()
	input.Placeholder = "buy SIGNAL 10 | sell PURPLE 5 | covert sabotage ARMORY"
	input.CharLimit = 64
	input.Focus()
	return playModel{player: player, feed: feed, input: input}
}

func (m playModel) Init() tea.Cmd {
	return tea.Batch(waitFeed(m.feed), textinput.Blink)
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			if err := m.submit(line); err != nil {
				m.status, m.isErr = err.Error(), true
			} else {
				m.status, m.isErr = "sent: "+line, false
			}
			return m, nil
		}
	case feedMsg:
		switch msg.Type {
		case "snapshot":
			m.snap = msg.Snapshot
		case "fill":
			if msg.Fill != nil {
				m.status = fmt.Sprintf("filled %s %d %s at %s",
					msg.Fill.Side, msg.Fill.Quantity, msg.Fill.Symbol, bucks(msg.Fill.PriceMicros))
				m.isErr = false
			}
		case "queued":
			m.status, m.isErr = "queued: "+msg.Queued, false
		case "error":
			m.status, m.isErr = msg.Error, true
		}
		return m, waitFeed(m.feed)
	case feedClosedMsg:
		m.closed = true
		m.status, m.isErr = "connection lost", true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m playModel) submit(line string) error {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "buy", "sell":
		if len(fields) != 3 {
			return fmt.Errorf("usage: %s SYMBOL QTY", fields[0])
		}
		qty, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || qty <= 0 {
			return fmt.Errorf("quantity must be a positive integer")
		}
		return m.feed.Send(cl.OrderMessage{
			Type:     "order",
			Symbol:   strings.ToUpper(fields[1]),
			Side:     strings.ToLower(fields[0]),
			Quantity: qty,
		})
	case "covert":
		if len(fields) < 2 {
			return fmt.Errorf("usage: covert KIND [TARGET]")
		}
		action, err := parseCovert(fields[1:])
		if err != nil {
			return err
		}
		return m.feed.Send(cl.OrderMessage{Type: "covert", Covert: &action})
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func (m playModel) View() string {
	var b strings.Builder

	if m.snap == nil {
		b.WriteString(titleStyle.Render("after hours") + "\n\nwaiting for the first tick...\n")
		b.WriteString("\n" + m.input.View() + "\n")
		return b.String()
	}
	snap := *m.snap

	phase := dayStyle.Render("DAY")
	if snap.Phase == game.PhaseNight {
		phase = nightStyle.Render("NIGHT")
	}
	b.WriteString(fmt.Sprintf("%s  %s  %s  %d online\n\n",
		titleStyle.Render("after hours"), phase, snap.Clock, snap.PlayersOnline))

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s %-12s %12s %10s %9s", "SYMBOL", "SECTOR", "PRICE", "AVAIL", "HEALTH")) + "\n")
	for _, c := range snap.Companies {
		row := fmt.Sprintf("%-8s %-12s %12s %10d %9s", c.Symbol, c.Sector, bucks(c.PriceMicros), c.Available, c.Health)
		if c.Eliminated {
			row = deadStyle.Render(row)
		}
		b.WriteString(row + "\n")
		if c.Insight != nil {
			b.WriteString(eventStyle.Render(fmt.Sprintf("         insight: health=%d drift=%+.4f vol=%.4f",
				c.Insight.Health, c.Insight.Drift, c.Insight.Volatility)) + "\n")
		}
	}

	b.WriteString(fmt.Sprintf("\ncash %s   net worth %s\n", bucks(snap.CashMicros), bucks(snap.NetWorthMicros)))
	if len(snap.Holdings) > 0 {
		for _, h := range snap.Holdings {
			b.WriteString(fmt.Sprintf("  %-8s %6d shares  %12s\n", h.Symbol, h.Shares, bucks(h.ValueMicros)))
		}
	}
	if snap.PendingCovert != nil {
		b.WriteString(nightStyle.Render("\ntonight: "+snap.PendingCovert.Describe()) + "\n")
	}
	if snap.Phase == game.PhaseNight && len(snap.Offers) > 0 {
		b.WriteString("\n" + headerStyle.Render("available tonight") + "\n")
		for _, o := range snap.Offers {
			b.WriteString("  " + o.Description + "\n")
		}
	}
	if len(snap.Events) > 0 {
		b.WriteString("\n")
		start := len(snap.Events) - 5
		if start < 0 {
			start = 0
		}
		for _, ev := range snap.Events[start:] {
			b.WriteString(eventStyle.Render(fmt.Sprintf("[%d] %s", ev.Tick, ev.Message)) + "\n")
		}
	}
	if snap.GameOver {
		if snap.Survivor != "" {
			b.WriteString(okStyle.Render(fmt.Sprintf("\nGAME OVER: %s is the last one standing\n", snap.Survivor)))
		} else {
			b.WriteString(errorStyle.Render("\nGAME OVER: everything collapsed\n"))
		}
	}

	if m.status != "" {
		style := okStyle
		if m.isErr {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.status) + "\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter to send, esc to leave") + "\n")
	return b.String()
}
