package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mcdev12/pitchtank/go/clients/pitchtank_client"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/spf13/cobra"
)

var verifyJSON bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check traction claims before you pitch",
	Long: `Verify ties your signed-in account to real traction: a TrustMRR profile
or a DefiLlama protocol. A verified result can be attached to a pitch.`,
}

var verifyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the verifications on file for your account",
	Args:  cobra.NoArgs,
	RunE: withBackend(func(ctx context.Context, client *pitchtank_client.PitchTankClient, _ []string) error {
		st, err := client.VerificationStatus(ctx)
		if err != nil {
			return err
		}
		if verifyJSON {
			return printJSON(os.Stdout, st)
		}
		return printVerificationStatus(os.Stdout, st)
	}),
}

var verifyTrustMRRCmd = &cobra.Command{
	Use:   "trustmrr <profile-url>",
	Short: "Verify a TrustMRR profile",
	Args:  cobra.ExactArgs(1),
	RunE: withBackend(func(ctx context.Context, client *pitchtank_client.PitchTankClient, args []string) error {
		v, err := client.VerifyTrustMRR(ctx, args[0])
		if err != nil {
			return err
		}
		return printVerification(os.Stdout, v)
	}),
}

var verifyDeFiCmd = &cobra.Command{
	Use:   "defi <protocol-slug>",
	Short: "Verify a DefiLlama protocol",
	Args:  cobra.ExactArgs(1),
	RunE: withBackend(func(ctx context.Context, client *pitchtank_client.PitchTankClient, args []string) error {
		v, err := client.VerifyDeFi(ctx, args[0])
		if err != nil {
			return err
		}
		return printVerification(os.Stdout, v)
	}),
}

var verifySearchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Find a DefiLlama protocol slug by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: withBackend(func(ctx context.Context, client *pitchtank_client.PitchTankClient, args []string) error {
		results, err := client.SearchDeFi(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if verifyJSON {
			return printJSON(os.Stdout, results)
		}
		return printProtocols(os.Stdout, results)
	}),
}

func init() {
	verifyCmd.PersistentFlags().BoolVar(&verifyJSON, "json", false, "Print results as JSON")
	verifyCmd.AddCommand(verifyStatusCmd, verifyTrustMRRCmd, verifyDeFiCmd, verifySearchCmd)
}

// withBackend loads config and logging and hands fn a backend client.
func withBackend(fn func(ctx context.Context, client *pitchtank_client.PitchTankClient, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logs := setupLogging(cfg.Log, false)
		defer logs.Close()

		client, err := requireBackend(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		return fn(ctx, client, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printVerification(w io.Writer, v *models.Verification) error {
	if verifyJSON {
		return printJSON(w, v)
	}
	status := "not verified"
	if v.Verified {
		status = "verified"
	}
	fmt.Fprintf(w, "%s %s (%s)\n", v.Type, status, v.Level)
	if v.Name != "" {
		fmt.Fprintf(w, "  %s\n", v.Name)
	}
	if v.PrimaryLabel != "" {
		fmt.Fprintf(w, "  %s: $%.0f\n", v.PrimaryLabel, v.PrimaryValue)
	}
	if v.Message != "" {
		fmt.Fprintf(w, "  %s\n", v.Message)
	}
	return nil
}

func printVerificationStatus(w io.Writer, st *pitchtank_client.VerificationStatus) error {
	if !st.Verified || len(st.Verifications) == 0 {
		_, err := fmt.Fprintln(w, "No verifications on file.")
		return err
	}
	kinds := make([]string, 0, len(st.Verifications))
	for k := range st.Verifications {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "%s verified\n", k)
	}
	return nil
}

func printProtocols(w io.Writer, results []models.Protocol) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No protocols found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tCATEGORY\tTVL")
	for _, p := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t$%.0f\n", p.Slug, p.Name, p.Category, p.TVL)
	}
	return tw.Flush()
}
