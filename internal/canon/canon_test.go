package canon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFormat(t *testing.T) {
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := Build(Observation{
		Symbol:    "BTCUSD",
		Price:     68867,
		Quote:     "USD",
		Decimals:  2,
		Timestamp: ts,
		Nonce:     "890123",
		Sources:   []string{"kraken", "coinbase", "coinbase"},
		Method:    "median",
	})
	assert.Equal(t, "v1|BTCUSD|68867.00|USD|2|2026-07-31T12:00:00Z|890123|coinbase,kraken|median", s)
}

func TestRoundTrip(t *testing.T) {
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	o := Observation{
		Symbol:    "XAUUSD",
		Price:     3421.55,
		Quote:     "USD",
		Decimals:  2,
		Timestamp: ts,
		Nonce:     "912345",
		Sources:   []string{"kitco", "coinbase", "kraken"},
		Method:    "median",
	}
	built := Build(o)
	parsed, err := Parse(built)
	require.NoError(t, err)
	assert.Equal(t, built, Build(parsed))
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("v1|BTCUSD|100|USD")
	assert.Error(t, err)

	_, err = Parse("v2|BTCUSD|100|USD|2|2026-07-31T12:00:00Z|1|a,b|median")
	assert.Error(t, err)
}

func TestSourcesSortedNoDuplicates(t *testing.T) {
	ts := time.Now().UTC()
	built := Build(Observation{
		Symbol: "ETHUSD", Price: 1, Quote: "USD", Decimals: 2,
		Timestamp: ts, Nonce: "1", Method: "median",
		Sources: []string{"z", "a", "z", "m"},
	})
	parsed, err := Parse(built)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, parsed.Sources)
}
