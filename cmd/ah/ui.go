package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"afterhours/internal/game"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) { success.Println(msg) }
func printWarn(msg string)    { warn.Println(msg) }

func promptRequired(label string) (string, error) {
	for {
		accent.Printf("%s: ", label)
		line, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
		warn.Println("value required")
	}
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	accent.Printf("%s: ", label)
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		line, err := stdinReader.ReadString('\n')
		return strings.TrimSpace(line), err
	}
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func bucks(micros int64) string {
	return fmt.Sprintf("$%.2f", game.MicrosToBucks(micros))
}

func healthColor(h game.HealthCategory) *color.Color {
	switch h {
	case game.HealthStrong:
		return success
	case game.HealthStable:
		return neutral
	case game.HealthWeak:
		return warn
	default:
		return danger
	}
}

func printMarket(snap game.Snapshot) {
	accent.Printf("%s  tick %d  %s  %d online\n\n", strings.ToUpper(string(snap.Phase)), snap.Tick, snap.Clock, snap.PlayersOnline)
	fmt.Printf("%-8s %-24s %-12s %12s %10s %8s\n", "SYMBOL", "COMPANY", "SECTOR", "PRICE", "AVAIL", "HEALTH")
	for _, c := range snap.Companies {
		h := healthColor(c.Health)
		fmt.Printf("%-8s %-24s %-12s %12s %10d ", c.Symbol, c.DisplayName, c.Sector, bucks(c.PriceMicros), c.Available)
		h.Printf("%8s\n", c.Health)
	}
	if len(snap.Events) > 0 {
		fmt.Println()
		accent.Println("recent events")
		for _, ev := range snap.Events {
			fmt.Printf("  [%d] %s\n", ev.Tick, ev.Message)
		}
	}
	if snap.GameOver {
		fmt.Println()
		if snap.Survivor != "" {
			success.Printf("GAME OVER: %s is the last company standing\n", snap.Survivor)
		} else {
			danger.Println("GAME OVER: the whole market collapsed")
		}
	}
}

func printLeaderboard(rows []game.LeaderboardRow) {
	fmt.Printf("%4s  %-20s %14s\n", "#", "PLAYER", "NET WORTH")
	for _, row := range rows {
		fmt.Printf("%4d  %-20s %14s\n", row.Rank, row.Player, bucks(row.NetWorthMicros))
	}
}

func printFill(fill game.Fill) {
	success.Printf("filled: %s %d %s at %s (total %s, fee %s)\n",
		fill.Side, fill.Quantity, fill.Symbol, bucks(fill.PriceMicros), bucks(fill.TotalMicros), bucks(fill.FeeMicros))
	neutral.Printf("cash remaining: %s\n", bucks(fill.CashMicros))
}
