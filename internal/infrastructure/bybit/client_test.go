package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSymbolsFollowsCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/instruments-info", r.URL.Path)
		assert.Equal(t, "linear", r.URL.Query().Get("category"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("cursor") {
		case "":
			w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","nextPageCursor":"page2","list":[
				{"symbol":"BTCUSDT","status":"Trading"},
				{"symbol":"MATICUSDT","status":"Closed"}]}}`))
		case "page2":
			w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","nextPageCursor":"","list":[
				{"symbol":"ETHUSDT","status":"Trading"}]}}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, time.Second)
	valid, unknown, err := c.ValidateSymbols(context.Background(), []string{"ETHUSDT", "MATICUSDT", "BTCUSDT", "FOOUSDT"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ETHUSDT", "BTCUSDT"}, valid)
	assert.Equal(t, []string{"MATICUSDT", "FOOUSDT"}, unknown)
}

func TestValidateSymbolsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, time.Second)
	_, _, err := c.ValidateSymbols(context.Background(), []string{"BTCUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params error")
}

func TestValidateSymbolsHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, time.Second)
	_, _, err := c.ValidateSymbols(context.Background(), []string{"BTCUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
