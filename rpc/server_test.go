package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Namit1867/NFT-Marketplace/native/market"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
	"github.com/Namit1867/NFT-Marketplace/state"
	"github.com/Namit1867/NFT-Marketplace/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := state.NewMarketState(storage.NewMemDB())

	var admin, vaultAddr, marketAddr [20]byte
	admin[19] = 0x01
	vaultAddr[19] = 0x02
	marketAddr[19] = 0x03

	escrow := vault.NewEngine(admin, vaultAddr)
	escrow.SetState(st)

	marketplace := market.NewEngine(admin, marketAddr)
	marketplace.SetState(st)
	marketplace.SetVault(escrow, vaultAddr)
	marketplace.SetMode(escrow.ModeSwitch())

	srv := httptest.NewServer(NewServer(marketplace, escrow).Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	status := getJSON(t, srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, status)
}

func TestParamsView(t *testing.T) {
	srv := newTestServer(t)
	var out map[string]interface{}
	status := getJSON(t, srv.URL+"/v1/params", &out)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(250), out["tradeFeeBps"])
	require.Equal(t, float64(250), out["auctionFeeBps"])
	require.Equal(t, "normal", out["mode"])
}

func TestListingsEmpty(t *testing.T) {
	srv := newTestServer(t)
	var out map[string][]uint64
	status := getJSON(t, srv.URL+"/v1/listings", &out)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, out["listingIds"])
}

func TestCreditView(t *testing.T) {
	srv := newTestServer(t)
	var out map[string]string
	status := getJSON(t, srv.URL+"/v1/vault/credit/0x00000000000000000000000000000000000000aa", &out)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "0", out["credit"])

	status = getJSON(t, srv.URL+"/v1/vault/credit/bogus", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSaleNotFound(t *testing.T) {
	srv := newTestServer(t)
	status := getJSON(t, srv.URL+"/v1/sales/99", nil)
	require.Equal(t, http.StatusNotFound, status)
}
