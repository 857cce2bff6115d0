package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored extraction records",
	Long:  "Commands for listing, viewing, and summarizing extraction records.",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction records, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		school, _ := cmd.Flags().GetString("school")
		program, _ := cmd.Flags().GetString("program")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := st.ListRecords(ctx, store.RecordFilter{
			School:  school,
			Program: program,
			Status:  model.RecordStatus(status),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "records list")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}

		formatRecordsList(os.Stdout, recs)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show full details of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return eris.Errorf("record %s not found", args[0])
		}
		if err != nil {
			return eris.Wrap(err, "records show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- records stats --

var recordsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts by status and confidence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListRecords(ctx, store.RecordFilter{Limit: 10000}) // high limit for stats
		if err != nil {
			return eris.Wrap(err, "records stats")
		}

		formatRecordStats(os.Stdout, computeRecordStats(recs))
		return nil
	},
}

func init() {
	recordsListCmd.Flags().String("school", "", "filter by school (case-insensitive)")
	recordsListCmd.Flags().String("program", "", "filter by program (case-insensitive)")
	recordsListCmd.Flags().String("status", "", "filter by status (Success, NotFound, Failed)")
	recordsListCmd.Flags().Int("limit", 50, "max number of records to display")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsStatsCmd)
	rootCmd.AddCommand(recordsCmd)
}

// recordStats holds aggregate counts computed from a set of records.
type recordStats struct {
	Total       int
	Success     int
	NotFound    int
	Failed      int
	High        int
	Medium      int
	Low         int
	NeedsReview int
}

// computeRecordStats computes aggregate counts from a list of records.
func computeRecordStats(recs []model.ExtractionRecord) recordStats {
	var s recordStats
	s.Total = len(recs)
	for _, r := range recs {
		switch r.Status {
		case model.RecordStatusSuccess:
			s.Success++
		case model.RecordStatusNotFound:
			s.NotFound++
		default:
			s.Failed++
		}
		switch r.ConfidenceScore {
		case model.ConfidenceHigh:
			s.High++
		case model.ConfidenceMedium:
			s.Medium++
		default:
			s.Low++
		}
		if r.Verification != nil && r.Verification.Status == model.VerificationNeedsReview {
			s.NeedsReview++
		}
	}
	return s
}

// formatRecordsList writes a tabular list of records to out.
func formatRecordsList(out io.Writer, recs []model.ExtractionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSCHOOL\tPROGRAM\tSTATUS\tCONFIDENCE\tTUITION\tCREATED")
	for _, r := range recs {
		tuition := model.Deref(r.TuitionAmount)
		if tuition == "" {
			tuition = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			truncate(r.School, 32),
			truncate(r.Program, 32),
			r.Status,
			r.ConfidenceScore,
			tuition,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRecordStats writes aggregate counts to out.
func formatRecordStats(out io.Writer, s recordStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Success:\t%d\n", s.Success)
	_, _ = fmt.Fprintf(w, "NotFound:\t%d\n", s.NotFound)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Confidence High/Medium/Low:\t%d/%d/%d\n", s.High, s.Medium, s.Low)
	_, _ = fmt.Fprintf(w, "Needs review:\t%d\n", s.NeedsReview)
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
