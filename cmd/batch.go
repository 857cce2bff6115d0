package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-research/internal/batch"
	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/targets"
	"github.com/sells-group/tuition-research/internal/workflows"
)

var (
	batchFile     string
	batchLimit    int
	batchTemporal bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract tuition for every (school, program) row in a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reqs, err := targets.Load(ctx, batchFile)
		if err != nil {
			return eris.Wrap(err, "load targets")
		}
		reqs = applyLimit(reqs, batchLimit)
		if len(reqs) == 0 {
			zap.L().Info("no targets found", zap.String("file", batchFile))
			return nil
		}

		if batchTemporal {
			return runTemporalBatch(ctx, reqs)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		runner := batch.NewRunner(env.Engine,
			batch.WithSaver(env.Store),
			batch.WithInterval(time.Duration(cfg.Batch.IntervalMs)*time.Millisecond),
			batch.WithConcurrency(cfg.Batch.Concurrency),
		)
		sum, err := runner.Run(ctx, reqs)
		printSummary(sum)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "CSV or XLSX file with school and program columns (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of rows to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchTemporal, "temporal", false, "submit the batch as a Temporal workflow and wait for it")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

func applyLimit(reqs []model.ExtractionRequest, limit int) []model.ExtractionRequest {
	if limit > 0 && len(reqs) > limit {
		return reqs[:limit]
	}
	return reqs
}

func printSummary(sum *batch.Summary) {
	if sum == nil {
		return
	}
	fmt.Fprintf(os.Stdout, "Total: %d  Success: %d  NotFound: %d  Failed: %d  Rejected: %d  SaveErrors: %d\n",
		sum.Total, sum.Succeeded, sum.NotFound, sum.Failed, sum.Rejected, sum.SaveErrors)
}

func runTemporalBatch(ctx context.Context, reqs []model.ExtractionRequest) error {
	c, err := dialTemporal()
	if err != nil {
		return err
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "tuition-batch-" + uuid.NewString(),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.BatchExtractWorkflowName, workflows.BatchInput{
		Requests:   reqs,
		IntervalMs: cfg.Batch.IntervalMs,
	})
	if err != nil {
		return eris.Wrap(err, "start batch workflow")
	}
	zap.L().Info("batch workflow started",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.Int("requests", len(reqs)),
	)

	var out workflows.BatchOutput
	if err := run.Get(ctx, &out); err != nil {
		return eris.Wrap(err, "batch workflow")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    workflows.NewZapLogger(nil),
	})
	if err != nil {
		return nil, eris.Wrap(err, "dial temporal")
	}
	return c, nil
}
