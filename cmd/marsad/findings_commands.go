package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"marsad/internal/api"
	"marsad/internal/daemonctl"
)

func newFindingsCommand(ctx *commandContext) *cobra.Command {
	findingsCmd := &cobra.Command{
		Use:   "findings",
		Short: "Browse and triage audit findings",
	}
	findingsCmd.AddCommand(newFindingsListCommand(ctx))
	findingsCmd.AddCommand(newFindingsAckCommand(ctx))
	return findingsCmd
}

func newFindingsListCommand(ctx *commandContext) *cobra.Command {
	var (
		runID      int64
		severity   string
		category   string
		status     string
		entityType string
		page       int
		limit      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List findings with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				resp, err := client.Findings(cmd.Context(), daemonctl.FindingsQuery{
					RunID:      runID,
					Severity:   severity,
					Category:   category,
					Status:     status,
					EntityType: entityType,
					Page:       page,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				printFindingsPage(cmd, resp)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&runID, "run", 0, "Filter by audit run id")
	cmd.Flags().StringVar(&severity, "severity", "", "Filter by severity (critical, high, medium, low)")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category (health, structural, content, reference, ai_law, ai_judgment)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by triage status (open, acknowledged, resolved, wont_fix)")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Filter by entity type (law, judgment, endpoint, index)")
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().IntVar(&limit, "limit", 50, "Results per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func printFindingsPage(cmd *cobra.Command, resp api.FindingsListResponse) {
	out := cmd.OutOrStdout()
	if len(resp.Findings) == 0 {
		fmt.Fprintln(out, "No findings match the given filters")
		return
	}

	headers := []string{"ID", "SEV", "CODE", "ENTITY", "LOCATION", "STATUS", "MESSAGE"}
	rows := make([][]string, 0, len(resp.Findings))
	for _, f := range resp.Findings {
		entity := f.EntityID
		if f.EntityName != "" {
			entity = f.EntityName
		}
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			f.Severity,
			f.Code,
			truncateCell(entity, 28),
			f.Location,
			f.Status,
			truncateCell(f.Message, 60),
		})
	}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
	fmt.Fprintf(out, "Showing %d of %d findings (page %d)\n", len(resp.Findings), resp.Total, resp.Page)
}

func truncateCell(value string, max int) string {
	r := []rune(value)
	if len(r) <= max {
		return value
	}
	return string(r[:max-1]) + "…"
}

func newFindingsAckCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "ack <id>",
		Short: "Update the triage status of a finding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *daemonctl.Client) error {
				updated, err := client.UpdateFindingStatus(cmd.Context(), id, status)
				if err != nil {
					return err
				}
				if !updated {
					fmt.Fprintf(cmd.OutOrStdout(), "Finding %d not found\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Finding %d marked %s\n", id, status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "acknowledged", "New status (open, acknowledged, resolved, wont_fix)")
	return cmd
}
