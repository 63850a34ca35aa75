package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/equity-cli/internal/model"
	"github.com/sells-group/equity-cli/internal/report"
	"github.com/sells-group/equity-cli/internal/store"
)

var (
	briefFocus   string
	briefStrict  bool
	briefOffline bool
	briefNoSave  bool
)

var briefCmd = &cobra.Command{
	Use:   "brief SYMBOL [SYMBOL...]",
	Short: "Generate a research brief for one or more tickers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if briefOffline {
			cfg.Fixtures.Enabled = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var st store.Store
		if !briefNoSave {
			var err error
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		p, err := buildPipeline(st, briefOffline)
		if err != nil {
			return err
		}

		mode := model.RunModeIsolate
		if briefStrict || cfg.Batch.Strict {
			mode = model.RunModeStrict
		}

		result, err := p.Run(ctx, args, mode, briefFocus)
		if err != nil {
			return eris.Wrap(err, "brief run")
		}

		if narrator := initNarrator(); narrator != nil {
			addNarratives(ctx, narrator, result)
		}

		markdown := report.FormatBatch(result)
		fmt.Fprint(cmd.OutOrStdout(), markdown)

		outDir, err := report.WriteArtifacts(cfg.Runs.Dir, result, markdown)
		if err != nil {
			return err
		}
		zap.L().Info("run artifacts written", zap.String("dir", outDir))

		if st != nil {
			saveBriefs(ctx, st, result)
		}

		// A non-empty failure log is reported with a distinct exit status
		// so callers can tell a degraded run from a clean one.
		if len(result.Failures) > 0 {
			_ = zap.L().Sync()
			os.Exit(2)
		}
		return nil
	},
}

// addNarratives asks the narrator for a short overview per record. A
// failed narrative leaves the deterministic sections standing and is
// logged as an analysis-stage entry in the run's failure log.
func addNarratives(ctx context.Context, narrator report.Narrator, result *model.BatchResult) {
	for i := range result.Records {
		rec := &result.Records[i]
		narrative, err := narrator.Narrative(ctx, rec)
		if err != nil {
			zap.L().Warn("narrative generation failed",
				zap.String("symbol", rec.Symbol), zap.Error(err))
			result.Failures = append(result.Failures, model.Failure{
				Symbol:  rec.Symbol,
				Stage:   model.StageAnalysis,
				Source:  "narrative",
				Message: err.Error(),
			})
			continue
		}
		rec.Narrative = narrative
	}
}

// saveBriefs persists the per-symbol markdown and record JSON. Failures
// here do not fail the run; the artifacts on disk are the primary output.
func saveBriefs(ctx context.Context, st store.Store, result *model.BatchResult) {
	if result.RunID == "" {
		return
	}
	for i := range result.Records {
		rec := &result.Records[i]
		raw, err := json.Marshal(rec)
		if err != nil {
			zap.L().Warn("marshal record", zap.String("symbol", rec.Symbol), zap.Error(err))
			continue
		}
		err = st.SaveBrief(ctx, store.Brief{
			RunID:    result.RunID,
			Symbol:   rec.Symbol,
			Markdown: report.FormatRecord(rec),
			Record:   raw,
		})
		if err != nil {
			zap.L().Warn("save brief", zap.String("symbol", rec.Symbol), zap.Error(err))
		}
	}
}

func init() {
	briefCmd.Flags().StringVar(&briefFocus, "focus", "", "optional analysis focus woven into the brief")
	briefCmd.Flags().BoolVar(&briefStrict, "strict", false, "abort the whole batch on the first fetcher error")
	briefCmd.Flags().BoolVar(&briefOffline, "offline", false, "use local fixture files instead of live feeds")
	briefCmd.Flags().BoolVar(&briefNoSave, "no-save", false, "skip run persistence")
	rootCmd.AddCommand(briefCmd)
}
