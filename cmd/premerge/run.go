package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-premerge/internal/report"
	"github.com/spec-kit/ticket-premerge/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one duplicate scan now",
	Long: `Fetch the configured window of tickets, validate candidate groups and tag
the validated ones. The report is written to REPORT_DIR/REPORT_FILE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		windowDays, _ := cmd.Flags().GetInt("window-days")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := newApplication(ctx)
		if err != nil {
			return err
		}
		defer app.close()
		app.startNotifier(ctx)

		rep, err := app.service.Run(ctx, service.RunOptions{
			Trigger:    service.TriggerManual,
			WindowDays: windowDays,
			DryRun:     dryRun,
		})
		if rep != nil {
			printSummary(rep, app.fileSink.Path())
		}
		return err
	},
}

func init() {
	runCmd.Flags().Int("window-days", 0, "Override DEDUP_WINDOW_DAYS for this run")
	runCmd.Flags().Bool("dry-run", false, "Validate and report without tagging tickets")
	rootCmd.AddCommand(runCmd)
}

func printSummary(rep *report.Report, path string) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Pre-merge candidates ==="))
	fmt.Printf("Run:     %s\n", rep.RunID)
	fmt.Printf("Window:  %d day(s)", rep.WindowDays)
	if rep.DryRun {
		fmt.Printf(" %s", yellow("(dry run)"))
	}
	fmt.Println()

	s := rep.Summary
	fmt.Printf("Tickets: %d fetched, %d processed, %s updated, %d unchanged, %s failed\n",
		s.TicketsFetched, s.TicketsProcessed,
		green(fmt.Sprintf("%d", s.TicketsUpdated)), s.TicketsSkipped,
		red(fmt.Sprintf("%d", s.TicketsFailed)))
	if s.Truncated {
		fmt.Printf("%s partial window after %d page(s): %s\n", yellow("⚠"), s.Pages, s.TruncationReason)
	}
	fmt.Println()

	fmt.Printf("%s\n", yellow(fmt.Sprintf("Validated groups (%d):", len(rep.Groups))))
	if len(rep.Groups) == 0 {
		fmt.Printf("  %s\n", gray("none"))
	}
	for _, group := range rep.Groups {
		fmt.Printf("  %s %s=%s on %s\n", green("✓"), group.Type, group.Criterion.Value, group.Criterion.Day)
		for _, ticket := range group.Tickets {
			marker := "  "
			if ticket.Parent {
				marker = "★ "
			}
			state := green("tagged")
			switch {
			case ticket.Error != "":
				state = red("failed: " + ticket.Error)
			case !ticket.Tagged:
				state = gray("not tagged")
			}
			fmt.Printf("    %s#%d [%s] %s\n", marker, ticket.ID, ticket.Status, state)
		}
	}
	fmt.Println()

	fmt.Printf("%s\n", yellow(fmt.Sprintf("Excluded groups (%d):", len(rep.Rejected))))
	if len(rep.Rejected) == 0 {
		fmt.Printf("  %s\n", gray("none"))
	}
	for _, rejected := range rep.Rejected {
		fmt.Printf("  %s %s=%s on %s: %s\n", red("✗"), rejected.Type, rejected.Criterion.Value,
			rejected.Criterion.Day, rejected.Reason.Message)
	}
	fmt.Println()

	for _, warning := range rep.Warnings {
		fmt.Printf("%s %s\n", yellow("⚠"), warning)
	}
	if path != "" {
		fmt.Printf("Report: %s\n", path)
	}
}
