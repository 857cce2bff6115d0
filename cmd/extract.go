package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-research/internal/model"
)

var (
	extractSchool  string
	extractProgram string
	extractNoSave  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract tuition for a single school and program",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Engine.Extract(ctx, model.ExtractionRequest{School: extractSchool, Program: extractProgram})
		if err != nil {
			return err
		}

		if !extractNoSave {
			if err := env.Store.SaveRecord(ctx, rec); err != nil {
				zap.L().Error("failed to save record", zap.String("record_id", rec.ID), zap.Error(err))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractSchool, "school", "", "institution name (required)")
	extractCmd.Flags().StringVar(&extractProgram, "program", "", "program name (required)")
	extractCmd.Flags().BoolVar(&extractNoSave, "no-save", false, "print the record without persisting it")
	_ = extractCmd.MarkFlagRequired("school")
	_ = extractCmd.MarkFlagRequired("program")
	rootCmd.AddCommand(extractCmd)
}
