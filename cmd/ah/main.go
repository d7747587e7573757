package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "afterhours/internal/cli"
	"afterhours/internal/config"
	"afterhours/internal/game"
)

func main() {
	cfg := config.LoadClientFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "ah",
		Short:        "After Hours trading client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(&apiBase),
		newMarketCmd(&apiBase),
		newTopCmd(&apiBase),
		newOrderCmd(&apiBase, "buy"),
		newOrderCmd(&apiBase, "sell"),
		newCovertCmd(&apiBase),
		newPlayCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			token, err := newClient(apiBase).Signup(ctx, name, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{Token: token, Name: name}); err != nil {
				return err
			}
			printSuccess("Welcome to the market. Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			token, err := newClient(apiBase).Login(ctx, name, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{Token: token, Name: name}); err != nil {
				return err
			}
			printSuccess("Logged in. Session saved.")
			return nil
		},
	}
}

func newLogoutCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sess, err := cl.LoadSession(); err == nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				_ = newClient(apiBase).Logout(ctx, sess.Token)
			}
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newMarketCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "market",
		Short: "Show the current board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			snap, err := newClient(apiBase).Market(ctx)
			if err != nil {
				return err
			}
			printMarket(snap)
			return nil
		},
	}
}

func newTopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Show the leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rows, err := newClient(apiBase).Leaderboard(ctx)
			if err != nil {
				return err
			}
			printLeaderboard(rows)
			return nil
		},
	}
}

func newOrderCmd(apiBase *string, side string) *cobra.Command {
	return &cobra.Command{
		Use:   side + " SYMBOL QTY",
		Short: side + " shares at the market price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || qty <= 0 {
				return fmt.Errorf("quantity must be a positive integer")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			fill, err := newClient(apiBase).PlaceOrder(ctx, sess.Token, strings.ToUpper(args[0]), side, qty)
			if err != nil {
				return err
			}
			printFill(fill)
			return nil
		},
	}
}

func newCovertCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covert KIND [TARGET]",
		Short: "Queue a night action (sabotage, hype, crash, insight, smear, bribe)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			action, err := parseCovert(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newClient(apiBase).QueueCovert(ctx, sess.Token, action); err != nil {
				return err
			}
			printWarn("Queued for tonight: " + action.Describe())
			return nil
		},
	}
	return cmd
}

func parseCovert(args []string) (game.CovertAction, error) {
	kind := strings.ToLower(args[0])
	target := ""
	if len(args) == 2 {
		target = args[1]
	}
	switch kind {
	case "sabotage":
		if target == "" {
			return game.CovertAction{}, fmt.Errorf("sabotage needs a symbol")
		}
		return game.CovertAction{Kind: game.CovertSabotage, Symbol: strings.ToUpper(target)}, nil
	case "hype":
		if target == "" {
			return game.CovertAction{}, fmt.Errorf("hype needs a sector (media, defense, commodity, technology)")
		}
		return game.CovertAction{Kind: game.CovertSectorHype, Sector: game.Sector(strings.ToLower(target))}, nil
	case "crash":
		return game.CovertAction{Kind: game.CovertMarketCrash}, nil
	case "insight":
		return game.CovertAction{Kind: game.CovertInsight}, nil
	case "smear":
		if target == "" {
			return game.CovertAction{}, fmt.Errorf("smear needs a player name")
		}
		return game.CovertAction{Kind: game.CovertSmear, Target: target}, nil
	case "bribe":
		return game.CovertAction{Kind: game.CovertBribe}, nil
	default:
		return game.CovertAction{}, fmt.Errorf("unknown covert kind %q", kind)
	}
}
