package peers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeersBuiltin(t *testing.T) {
	l := New()
	assert.Equal(t, []string{"MSFT", "GOOGL", "WMT"}, l.Peers("amzn"))
	assert.Equal(t, []string{"GOOGL", "AMZN", "AAPL"}, l.Peers("MSFT"))
}

func TestPeersUnknownSymbol(t *testing.T) {
	l := New()
	got := l.Peers("ZZZZ")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPeersResultIsACopy(t *testing.T) {
	l := New()
	got := l.Peers("AMZN")
	got[0] = "XXXX"
	assert.Equal(t, []string{"MSFT", "GOOGL", "WMT"}, l.Peers("AMZN"))
}

func TestNewFromFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amzn: [shop, baba]\nNVDA: [AMD, INTC]\n"), 0o644))

	l, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"SHOP", "BABA"}, l.Peers("AMZN"))
	assert.Equal(t, []string{"AMD", "INTC"}, l.Peers("nvda"))
	// Untouched built-in entries survive the overlay.
	assert.Equal(t, []string{"GOOGL", "AMZN", "AAPL"}, l.Peers("MSFT"))
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
