package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mcdev12/pitchtank/go/clients/pitchtank_client"
	"github.com/mcdev12/pitchtank/go/internal/leaderboard"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/spf13/cobra"
)

var (
	leaderboardLimit    int
	leaderboardJSON     bool
	leaderboardRemote   bool
	leaderboardVerified bool
	leaderboardUser     string
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the biggest deals closed so far",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().IntVarP(&leaderboardLimit, "limit", "n", 10, "Number of entries to show")
	leaderboardCmd.Flags().BoolVar(&leaderboardJSON, "json", false, "Print entries as JSON")
	leaderboardCmd.Flags().BoolVar(&leaderboardRemote, "remote", false, "Read the backend's shared leaderboard instead of the local store")
	leaderboardCmd.Flags().BoolVar(&leaderboardVerified, "verified", true, "With --remote, only show verified pitches")
	leaderboardCmd.Flags().StringVar(&leaderboardUser, "user", "", "Show the latest pitch of one user from the backend")
}

func runLeaderboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logs := setupLogging(cfg.Log, false)
	defer logs.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	if leaderboardRemote || leaderboardUser != "" {
		client, err := requireBackend(cfg)
		if err != nil {
			return err
		}
		return runRemoteLeaderboard(ctx, client, os.Stdout)
	}

	store, err := leaderboard.Open(ctx, cfg.Leaderboard)
	if err != nil {
		return fmt.Errorf("opening leaderboard: %w", err)
	}
	if store == nil {
		return fmt.Errorf("no leaderboard configured, set leaderboard.driver or LEADERBOARD_DRIVER")
	}
	defer closeStore(store)

	entries, err := store.Top(ctx, leaderboardLimit)
	if err != nil {
		return fmt.Errorf("reading leaderboard: %w", err)
	}

	if leaderboardJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return printLeaderboard(entries)
}

func printLeaderboard(entries []leaderboard.Entry) error {
	if len(entries) == 0 {
		fmt.Println("No deals yet.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCOMPANY\tDEAL\tEQUITY\tSHARK\tFOUNDER\tDATE")
	for i, e := range entries {
		founder := e.Handle
		if founder == "" {
			founder = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t$%d\t%g%%\t%s\t%s\t%s\n",
			i+1, e.CompanyName, e.DealAmount, e.Equity, e.SharkID, founder, e.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runRemoteLeaderboard(ctx context.Context, client *pitchtank_client.PitchTankClient, w io.Writer) error {
	var entries []pitchtank_client.LeaderboardEntry
	if leaderboardUser != "" {
		entry, err := client.UserLeaderboard(ctx, leaderboardUser)
		if err != nil {
			return err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	} else {
		var err error
		entries, err = client.Leaderboard(ctx, leaderboardVerified, leaderboardLimit)
		if err != nil {
			return err
		}
	}

	if leaderboardJSON {
		return printJSON(w, entries)
	}
	return printRemoteLeaderboard(w, entries)
}

func printRemoteLeaderboard(w io.Writer, entries []pitchtank_client.LeaderboardEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No pitches yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCOMPANY\tRESULT\tDEAL\tEQUITY\tFOUNDER\tPROOF")
	for i, e := range entries {
		rank := e.Rank
		if rank == 0 {
			rank = i + 1
		}
		founder := e.Handle
		if founder == "" {
			founder = "-"
		}
		proof := string(e.Verification.Type)
		if proof == "" {
			proof = string(models.VerificationNone)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%d\t%g%%\t%s\t%s\n",
			rank, e.PitchData.CompanyName, e.Outcome.Result, e.Outcome.DealAmount, e.Outcome.Equity, founder, proof)
	}
	return tw.Flush()
}
