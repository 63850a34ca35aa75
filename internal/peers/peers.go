// Package peers provides a static comparable-company lookup. No network
// calls are involved; the built-in map can be extended with a YAML file.
package peers

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/equity-cli/internal/model"
)

// SourceName identifies this lookup in failure logs.
const SourceName = "peers"

// builtin holds the default peer groups for covered tickers.
var builtin = map[string][]string{
	"AMZN": {"MSFT", "GOOGL", "WMT"},
	"MSFT": {"GOOGL", "AMZN", "AAPL"},
	"SNOW": {"DDOG", "MDB", "NOW"},
}

// Lookup maps a symbol to its ordered peer group.
type Lookup struct {
	groups map[string][]string
}

// New returns a Lookup over the built-in peer groups.
func New() *Lookup {
	groups := make(map[string][]string, len(builtin))
	for k, v := range builtin {
		groups[k] = append([]string(nil), v...)
	}
	return &Lookup{groups: groups}
}

// NewFromFile returns a Lookup with the built-in groups overlaid by a YAML
// file mapping symbol to peer list. File entries replace built-in entries
// for the same symbol.
func NewFromFile(path string) (*Lookup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "peers: read %s", path)
	}

	var overlay map[string][]string
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, eris.Wrapf(err, "peers: parse %s", path)
	}

	l := New()
	for symbol, group := range overlay {
		canonical := model.CanonicalSymbol(symbol)
		peers := make([]string, 0, len(group))
		for _, p := range group {
			peers = append(peers, model.CanonicalSymbol(p))
		}
		l.groups[canonical] = peers
	}
	return l, nil
}

// Peers returns the ordered peer group for symbol. Unknown symbols return
// an empty, non-nil slice.
func (l *Lookup) Peers(symbol string) []string {
	group, ok := l.groups[model.CanonicalSymbol(symbol)]
	if !ok {
		return []string{}
	}
	return append([]string(nil), group...)
}
