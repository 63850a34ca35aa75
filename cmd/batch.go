package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/equity-cli/internal/model"
	"github.com/sells-group/equity-cli/internal/report"
)

var (
	batchFile        string
	batchConcurrency int
	batchStrict      bool
	batchOffline     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate briefs for a file of tickers",
	Long:  "Reads one ticker per line (blank lines and #-comments skipped) and processes them concurrently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if batchOffline {
			cfg.Fixtures.Enabled = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		symbols, err := readSymbolFile(batchFile)
		if err != nil {
			return err
		}
		if len(symbols) == 0 {
			return eris.Errorf("no symbols found in %s", batchFile)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if batchConcurrency > 0 {
			cfg.Batch.MaxConcurrentSymbols = batchConcurrency
		}

		p, err := buildPipeline(st, batchOffline)
		if err != nil {
			return err
		}

		mode := model.RunModeIsolate
		if batchStrict || cfg.Batch.Strict {
			mode = model.RunModeStrict
		}

		result, err := p.Run(ctx, symbols, mode, "")
		if err != nil {
			return eris.Wrap(err, "batch run")
		}

		markdown := report.FormatBatch(result)
		outDir, err := report.WriteArtifacts(cfg.Runs.Dir, result, markdown)
		if err != nil {
			return err
		}
		saveBriefs(ctx, st, result)

		zap.L().Info("batch complete",
			zap.String("run_id", result.RunID),
			zap.String("dir", outDir),
			zap.Int("records", len(result.Records)),
			zap.Int("failures", len(result.Failures)),
		)

		if len(result.Failures) > 0 {
			_ = zap.L().Sync()
			os.Exit(2)
		}
		return nil
	},
}

// readSymbolFile parses a ticker list, one symbol per line.
func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open symbol file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read symbol file %s", path)
	}
	return symbols, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "path to ticker list, one symbol per line (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max tickers processed at once (default from config)")
	batchCmd.Flags().BoolVar(&batchStrict, "strict", false, "abort the whole batch on the first fetcher error")
	batchCmd.Flags().BoolVar(&batchOffline, "offline", false, "use local fixture files instead of live feeds")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
