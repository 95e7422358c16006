package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"marsad/internal/api"
	"marsad/internal/daemonctl"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Run and inspect corpus audits",
	}
	auditCmd.AddCommand(newAuditRunCommand(ctx))
	auditCmd.AddCommand(newAuditStatusCommand(ctx))
	return auditCmd
}

func newAuditRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Trigger a new audit run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				resp, err := client.StartRun(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Audit run %d started\n", resp.RunID)
				return nil
			})
		},
	}
}

func newAuditStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest audit run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				run, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, run)
				}
				printRunStatus(cmd.OutOrStdout(), run)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func printRunStatus(out io.Writer, run *api.Run) {
	if run == nil {
		fmt.Fprintln(out, "No audit has been run yet")
		return
	}
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Run #%d  %s\n", run.ID, statusBadge(run.Status, colorize))
	if run.StartedAt != "" {
		fmt.Fprintf(out, "  Started:   %s\n", run.StartedAt)
	}
	if run.FinishedAt != "" {
		fmt.Fprintf(out, "  Finished:  %s\n", run.FinishedAt)
	}
	step := run.CurrentStep
	if step == "" {
		step = "-"
	}
	fmt.Fprintf(out, "  Progress:  %d%% (%s)\n", run.ProgressPct, step)
	fmt.Fprintf(out, "  Scanned:   %d laws, %d judgments\n", run.TotalLawsScanned, run.TotalJudgmentsScanned)
	fmt.Fprintf(out, "  Findings:  %d (critical %d, high %d, medium %d, low %d)\n",
		run.TotalFindings, run.Counts.Critical, run.Counts.High, run.Counts.Medium, run.Counts.Low)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:     %s\n", run.ErrorMessage)
	}
	if run.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", run.Summary)
	}
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func statusBadge(status string, colorize bool) string {
	badge := "[" + strings.ToUpper(status) + "]"
	if !colorize {
		return badge
	}
	switch status {
	case "completed":
		return ansiGreen + badge + ansiReset
	case "failed":
		return ansiRed + badge + ansiReset
	case "running":
		return ansiYellow + badge + ansiReset
	default:
		return badge
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeJSON(cmd *cobra.Command, payload any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(payload)
}

func parsePositiveID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid finding id %q", arg)
	}
	return id, nil
}
