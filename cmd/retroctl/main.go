// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command retroctl is a terminal client for a retroboard server.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/retroboard/client"
	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient builds a client from the persistent flags, falling back to the
// RETROBOARD_* environment variables.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	if server == "" {
		server = envOr("RETROBOARD_SERVER", "http://localhost:3318")
	}
	c, err := client.New(server)
	if err != nil {
		return nil, err
	}

	c.UserID, _ = cmd.Flags().GetString("user")
	c.Token, _ = cmd.Flags().GetString("token")
	if c.UserID == "" {
		c.UserID = os.Getenv("RETROBOARD_USER_ID")
	}
	if c.Token == "" {
		c.Token = os.Getenv("RETROBOARD_USER_TOKEN")
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// requireUser fails early when no identity is configured.
func requireUser(c *client.Client) error {
	if c.UserID == "" || c.Token == "" {
		return errors.New("no identity: run 'retroctl user create' and set RETROBOARD_USER_ID and RETROBOARD_USER_TOKEN")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "retroctl",
	Short:        "Retrospective board client",
	SilenceUsage: true,
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage identities",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new user identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		user, err := c.CreateUser(cmd.Context())
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		fmt.Printf("export RETROBOARD_USER_ID=%s\n", user.UserID)
		fmt.Printf("export RETROBOARD_USER_TOKEN=%s\n", user.Token)
		return nil
	},
}

// board command
var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Manage boards",
}

var boardCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, _ := cmd.Flags().GetString("policy")
		passphrase, _ := cmd.Flags().GetString("passphrase")
		columns, _ := cmd.Flags().GetStringSlice("column")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := requireUser(c); err != nil {
			return err
		}

		req := models.CreateBoardRequest{Name: args[0], AccessPolicy: policy, Passphrase: passphrase}
		for _, name := range columns {
			req.Columns = append(req.Columns, models.CreateColumnArgs{Name: name})
		}
		boardID, err := c.CreateBoard(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("creating board: %w", err)
		}
		fmt.Println(boardID)
		return nil
	},
}

var boardShowCmd = &cobra.Command{
	Use:   "show BOARD",
	Short: "Print a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := requireUser(c); err != nil {
			return err
		}
		snap, err := c.Board(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("fetching board: %w", err)
		}
		renderBoard(os.Stdout, stateOf(snap), time.Now())
		return nil
	},
}

var boardDeleteCmd = &cobra.Command{
	Use:   "delete BOARD",
	Short: "Delete a board and everything on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := requireUser(c); err != nil {
			return err
		}
		if err := c.DeleteBoard(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting board: %w", err)
		}
		fmt.Printf("Deleted board %s\n", args[0])
		return nil
	},
}

// join command
var joinCmd = &cobra.Command{
	Use:   "join BOARD",
	Short: "Join a board, waiting for confirmation on invite-only boards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, _ := cmd.Flags().GetString("passphrase")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := requireUser(c); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Joining...")
		err = c.Admit(ctx, args[0], passphrase)
		var admission *client.AdmissionError
		if errors.As(err, &admission) {
			return fmt.Errorf("join refused: %s", admission.State)
		}
		if err != nil {
			return fmt.Errorf("joining board: %w", err)
		}
		fmt.Println("Joined")
		return nil
	},
}

// send command
var sendCmd = &cobra.Command{
	Use:   "send BOARD COMMAND [ARGS_JSON]",
	Short: "Apply one command, e.g. send BOARD createNote '{\"column\":\"...\",\"text\":\"...\"}'",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := requireUser(c); err != nil {
			return err
		}

		var cmdArgs any
		if len(args) == 3 {
			raw := json.RawMessage(args[2])
			if !json.Valid(raw) {
				return fmt.Errorf("command args are not valid JSON")
			}
			cmdArgs = raw
		}
		if err := c.Command(cmd.Context(), args[0], args[1], cmdArgs); err != nil {
			return fmt.Errorf("%s rejected: %w", args[1], err)
		}
		fmt.Println("OK")
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch BOARD",
	Short: "Stream board events and redraw the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, _ := cmd.Flags().GetString("passphrase")
		quiet, _ := cmd.Flags().GetBool("quiet")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := requireUser(c); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := c.Connect(ctx, args[0], passphrase)
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer s.Close()

		for {
			select {
			case ev, ok := <-s.Events():
				if !ok {
					return s.Err()
				}
				fmt.Println(describeEvent(ev))
				if !quiet {
					if st := s.Replica().State(); st != nil {
						renderBoard(os.Stdout, st, time.Now())
						fmt.Println()
					}
				}
				if ev.Type == models.EventBoardDeleted {
					fmt.Println("Board deleted")
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	},
}

func stateOf(snap models.InitPayload) *engine.State {
	return &engine.State{
		Board:        snap.Board,
		Columns:      snap.Columns,
		Notes:        snap.Notes,
		Participants: snap.Participants,
		Votes:        snap.Votes,
		Votings:      snap.Votings,
		Requests:     snap.Requests,
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("server", "s", "", "Server URL (default $RETROBOARD_SERVER or http://localhost:3318)")
	rootCmd.PersistentFlags().String("user", "", "User id (default $RETROBOARD_USER_ID)")
	rootCmd.PersistentFlags().String("token", "", "User token (default $RETROBOARD_USER_TOKEN)")

	// user subcommands
	userCmd.AddCommand(userCreateCmd)

	// board subcommands
	boardCmd.AddCommand(boardCreateCmd)
	boardCreateCmd.Flags().String("policy", models.AccessPublic, "Access policy: PUBLIC, BY_PASSPHRASE or BY_INVITE")
	boardCreateCmd.Flags().String("passphrase", "", "Passphrase for BY_PASSPHRASE boards")
	boardCreateCmd.Flags().StringSliceP("column", "c", nil, "Column to create (repeatable)")
	boardCmd.AddCommand(boardShowCmd)
	boardCmd.AddCommand(boardDeleteCmd)

	// root commands
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().StringP("passphrase", "p", "", "Board passphrase")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringP("passphrase", "p", "", "Board passphrase")
	watchCmd.Flags().BoolP("quiet", "q", false, "Print events only")
}
