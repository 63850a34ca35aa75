package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/model"
)

// FixtureSource serves canned price payloads from a directory, for offline
// runs and deterministic demos. Files are named prices_<SYMBOL>.json.
type FixtureSource struct {
	dir string
}

// NewFixtureSource creates a fixture-backed price source.
func NewFixtureSource(dir string) *FixtureSource {
	return &FixtureSource{dir: dir}
}

// Name implements Source.
func (f *FixtureSource) Name() string { return SourceName }

type fixturePayload struct {
	History []struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	} `json:"history"`
}

// History implements Source. A missing fixture is reported as ErrNoData.
func (f *FixtureSource) History(_ context.Context, symbol string) (*model.PriceHistory, error) {
	symbol = model.CanonicalSymbol(symbol)
	path := filepath.Join(f.dir, fmt.Sprintf("prices_%s.json", symbol))

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNoData, "no price fixture for %s", symbol)
		}
		return nil, eris.Wrapf(err, "prices: read fixture %s", path)
	}

	var payload fixturePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, eris.Wrapf(err, "prices: parse fixture %s", path)
	}
	if len(payload.History) == 0 {
		return nil, eris.Wrapf(ErrNoData, "empty price fixture for %s", symbol)
	}

	points := make([]model.PricePoint, 0, len(payload.History))
	for _, row := range payload.History {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "prices: fixture date %q", row.Date)
		}
		points = append(points, model.PricePoint{Date: date, Close: row.Close})
	}

	h := Summarize(symbol, points)
	if err := h.Validate(); err != nil {
		return nil, eris.Wrap(err, "prices: fixture series")
	}
	return h, nil
}
