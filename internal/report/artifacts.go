package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/model"
)

// WriteArtifacts saves the run output under <dir>/<run_id>/ as brief.md
// and result.json. Returns the directory written to.
func WriteArtifacts(dir string, result *model.BatchResult, markdown string) (string, error) {
	runID := result.RunID
	if runID == "" {
		runID = result.GeneratedAt.UTC().Format("20060102_150405")
	}
	outDir := filepath.Join(dir, runID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create run dir %s", outDir)
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "report: marshal result")
	}
	if err := os.WriteFile(filepath.Join(outDir, "result.json"), payload, 0o644); err != nil {
		return "", eris.Wrap(err, "report: write result.json")
	}
	if err := os.WriteFile(filepath.Join(outDir, "brief.md"), []byte(markdown), 0o644); err != nil {
		return "", eris.Wrap(err, "report: write brief.md")
	}
	return outDir, nil
}
