package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/SPY.json", r.URL.Path)
		fmt.Fprint(w, `{"data":{
			"current_price": 605.50,
			"options": [
				{"option":"SPY250915C00610000","open_interest":5000,"volume":1200,"iv":0.18,"gamma":0.012},
				{"option":"SPY250915P00590000","open_interest":6000,"volume":1500,"iv":0.22,"gamma":0.011}
			]}}`)
	}))
	defer server.Close()

	client := NewChainClient(server.URL, server.Client())
	snap, err := client.Fetch(context.Background(), "spy")
	require.NoError(t, err)

	assert.Equal(t, "SPY", snap.Ticker)
	assert.Equal(t, 605.50, snap.Spot)
	require.Len(t, snap.Options, 2)
	assert.Equal(t, "SPY250915C00610000", snap.Options[0].Symbol)
}

func TestChainClient_SpotFallbackOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// current_price missing, close present: close wins over later fields.
		fmt.Fprint(w, `{"data":{"close": 604.10, "bid": 604.00, "options":[{"option":"x"}]}}`)
	}))
	defer server.Close()

	client := NewChainClient(server.URL, server.Client())
	snap, err := client.Fetch(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 604.10, snap.Spot)
}

func TestChainClient_NoSpotIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"options":[{"option":"x"}]}}`)
	}))
	defer server.Close()

	client := NewChainClient(server.URL, server.Client())
	_, err := client.Fetch(context.Background(), "SPY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no spot price")
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "QQQ", NormalizeTicker("NASDAQ"))
	assert.Equal(t, "GLD", NormalizeTicker("GOLD"))
	assert.Equal(t, "SLV", NormalizeTicker("silver"))
	assert.Equal(t, "SPY", NormalizeTicker("spy"))
}

func TestDarkPoolClient_WalksExchangePrefixes(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		// First prefix for GLD is amex, which is missing here.
		if strings.HasPrefix(r.URL.Path, "/amex-") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `[{"price": 312.45, "volume": 800000, "trades": 3}]`)
	}))
	defer server.Close()

	client := NewDarkPoolClient(server.URL, server.Client())
	snap, err := client.FetchLevels(context.Background(), "GOLD")
	require.NoError(t, err)

	require.Len(t, snap.Observations, 1)
	assert.Equal(t, 312.45, snap.Observations[0].Price)
	require.Len(t, paths, 2)
	assert.Equal(t, "/amex-gld/dark-pool-levels.json", paths[0])
	assert.Equal(t, "/nyse_arca-gld/dark-pool-levels.json", paths[1])
}

func TestDarkPoolClient_FetchLevelsKeepsHeaviestRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			{"price": 601.00, "volume": 200000, "trades": 2},
			{"price": 602.00, "volume": 150000, "trades": 1},
			{"price": 603.00, "volume": 900000, "trades": 5}
		]`)
	}))
	defer server.Close()

	client := NewDarkPoolClient(server.URL, server.Client())
	client.MaxRows = 2
	snap, err := client.FetchLevels(context.Background(), "QQQ")
	require.NoError(t, err)

	// The large row arriving last still makes the cut.
	require.Len(t, snap.Observations, 2)
	assert.Equal(t, 603.00, snap.Observations[0].Price)
	assert.Equal(t, 601.00, snap.Observations[1].Price)
}

func TestDarkPoolClient_FetchPrintsFiltersSmall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"price": 605.10, "size": 250000, "side": "Bid", "exchange": "FINRA"},
			{"price": 605.20, "size": 5000, "side": "Ask"}
		]`)
	}))
	defer server.Close()

	client := NewDarkPoolClient(server.URL, server.Client())
	snap, err := client.FetchPrints(context.Background(), "SPY")
	require.NoError(t, err)

	require.Len(t, snap.Prints, 1)
	assert.Equal(t, int64(250_000), snap.Prints[0].Size)
	assert.Equal(t, 605.10*250_000, snap.Prints[0].Dollar)
}

func TestShortVolumeClient_ParsesDailyFile(t *testing.T) {
	now := time.Date(2025, 8, 29, 15, 0, 0, 0, time.UTC) // Friday

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Thursday's file.
		if !strings.Contains(r.URL.Path, "20250828") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "Date|Symbol|ShortVolume|ShortExemptVolume|TotalVolume|Market\n"+
			"20250828|SPY|32000000|150000|64000000|B,Q,N\n")
	}))
	defer server.Close()

	client := NewShortVolumeClient(server.URL, server.Client())
	sv, err := client.Fetch(context.Background(), "SPY", now)
	require.NoError(t, err)
	require.NotNil(t, sv)

	assert.Equal(t, "2025-08-28", sv.Date)
	assert.Equal(t, int64(32_000_000), sv.ShortVolume)
	assert.Equal(t, 50.0, sv.ShortPercent)
}

func TestShortVolumeClient_AbsentDataIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewShortVolumeClient(server.URL, server.Client())
	sv, err := client.Fetch(context.Background(), "SPY", time.Date(2025, 8, 29, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, sv)
}

func TestQuoteClient_MapsRowsToRawOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/options/get", r.URL.Path)
		assert.Equal(t, "SPY", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"meta":{"lastPrice": 605.50},"data":[
			{"strikePrice": 610, "optionType": "Call", "expirationDate": "2025-09-15",
			 "openInterest": 5000, "volume": 1200, "volatility": 18.5, "gamma": 0.012},
			{"strikePrice": 590, "optionType": "Put", "expirationDate": "2025-09-15",
			 "openInterest": 6000, "volume": 1500, "volatility": 22.0, "gamma": 0.011},
			{"strikePrice": 0, "optionType": "Call", "expirationDate": "2025-09-15"}
		]}`)
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL, server.Client())
	snap, err := client.Fetch(context.Background(), "spy")
	require.NoError(t, err)

	assert.Equal(t, 605.50, snap.Spot)
	require.Len(t, snap.Options, 2) // zero strike dropped
	assert.Equal(t, "SPY250915C00610000", snap.Options[0].Symbol)
	assert.InDelta(t, 0.185, snap.Options[0].IV, 1e-9)
	assert.Equal(t, "SPY250915P00590000", snap.Options[1].Symbol)
}

func TestQuoteClient_NoSpotIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL, server.Client())
	_, err := client.Fetch(context.Background(), "SPY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no spot price")
}
