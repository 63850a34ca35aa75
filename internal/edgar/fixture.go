package edgar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/model"
)

// FixtureSource serves canned filing documents from
// filing_<SYMBOL>_item7.html files, for offline runs.
type FixtureSource struct {
	dir      string
	patterns []Pattern
}

// NewFixtureSource creates a fixture-backed excerpt source.
func NewFixtureSource(dir string) *FixtureSource {
	return &FixtureSource{dir: dir, patterns: DefaultPatterns()}
}

// Name implements ExcerptSource.
func (f *FixtureSource) Name() string { return SourceName }

// Excerpt implements ExcerptSource. The fixture document goes through the
// same flatten-and-extract path as a live filing; when no pattern matches,
// the whole flattened text stands in for the section since the fixture is
// already scoped to the target item.
func (f *FixtureSource) Excerpt(_ context.Context, symbol string) (*model.FilingExcerpt, error) {
	symbol = model.CanonicalSymbol(symbol)
	path := filepath.Join(f.dir, fmt.Sprintf("filing_%s_item7.html", symbol))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: read fixture for %s", symbol)
	}

	text, err := FlattenHTML(string(raw))
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: parse fixture for %s", symbol)
	}

	filing := model.Filing{
		FormType:        "10-K",
		PrimaryDocument: filepath.Base(path),
		DocumentURL:     path,
	}

	section, err := ExtractSection(text, f.patterns)
	if err != nil {
		if !errors.Is(err, ErrSectionNotFound) {
			return nil, err
		}
		section = text
		if len(section) > 20000 {
			section = section[:20000]
		}
	}
	return &model.FilingExcerpt{Filing: filing, Section: section}, nil
}
