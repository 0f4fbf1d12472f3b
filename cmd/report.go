package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/tt/internal/models"
	"github.com/joescharf/tt/internal/output"
	"github.com/joescharf/tt/internal/timelog"
	"github.com/joescharf/tt/internal/tracker"
)

var (
	reportDate   string
	exportFormat string
	exportDate   string
)

var reportCmd = &cobra.Command{
	Use:   "report [date]",
	Short: "Show the hours logged on a day",
	Long: `Show every logged session for one date (YYYY-MM-DD, default today)
with the total hours. The date must match the log exactly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := reportDate
		if len(args) == 1 {
			date = args[0]
		}
		return reportRun(cmd.Context(), date)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export logged sessions as JSON, CSV, or Markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(cmd.Context(), exportFormat, exportDate)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportDate, "date", "d", "", "Date to report (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Only export records for this date (YYYY-MM-DD)")
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
}

func reportRun(ctx context.Context, date string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.Report(ctx, date)
	if err != nil {
		return err
	}

	r := res.Report
	if res.Outcome == tracker.OutcomeNoEntries {
		ui.Info("No entries found for %s", r.Date)
		return nil
	}

	fmt.Fprintf(ui.Out, "Daily Report for %s\n", output.Cyan(r.Date))
	fmt.Fprintf(ui.Out, "Total hours: %s\n", output.HoursColor(r.TotalHours))
	fmt.Fprintf(ui.Out, "Entries: %d\n\n", r.Count())

	table := ui.Table([]string{"Start", "End", "Hours", "Description"})
	for _, rec := range r.Records {
		table.Append([]string{rec.StartTime, rec.EndTime, formatHours(rec.DurationHours), rec.Description})
	}
	return table.Render()
}

// recordOut is the exported shape of a log record.
type recordOut struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	Date          string  `json:"date"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	DurationHours float64 `json:"duration_hours"`
	Description   string  `json:"description"`
}

func toRecordOut(recs []models.LogRecord) []recordOut {
	out := make([]recordOut, len(recs))
	for i, r := range recs {
		out[i] = recordOut{
			ID:            r.ID,
			Name:          r.Owner,
			Date:          r.Date,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			DurationHours: r.DurationHours,
			Description:   r.Description,
		}
	}
	return out
}

func exportRun(ctx context.Context, format, date string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch format {
	case "json", "csv", "markdown":
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown)", format)
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var recs []models.LogRecord
	if date = strings.TrimSpace(date); date != "" {
		recs, err = a.log.RecordsForDate(ctx, date)
	} else {
		recs, err = a.log.Records(ctx)
	}
	if err != nil {
		return fmt.Errorf("read time log: %w", err)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(toRecordOut(recs))
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write(timelog.Header)
		for _, r := range recs {
			_ = w.Write([]string{r.Owner, r.Date, r.StartTime, r.EndTime, formatHours(r.DurationHours), r.Description})
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Fprintln(ui.Out, "# Time Log")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Date | Start | End | Hours | Description |")
		fmt.Fprintln(ui.Out, "|------|-------|-----|-------|-------------|")
		for _, r := range recs {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %s |\n",
				r.Date, r.StartTime, r.EndTime, formatHours(r.DurationHours), strings.ReplaceAll(r.Description, "|", `\|`))
		}
		return nil
	}
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}
