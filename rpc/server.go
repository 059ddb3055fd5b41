package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Namit1867/NFT-Marketplace/config"
	"github.com/Namit1867/NFT-Marketplace/native/market"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
)

// Server exposes the read-only marketplace views over HTTP. All mutating
// operations go through transactions against the engines, never through this
// surface.
type Server struct {
	market *market.Engine
	vault  *vault.Engine
}

// NewServer constructs the view server over the wired engines.
func NewServer(m *market.Engine, v *vault.Engine) *Server {
	return &Server{market: m, vault: v}
}

// Router builds the chi router with every view route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/listings", s.handleListings)
		r.Get("/listings/trades", s.handleTradeListings)
		r.Get("/whitelist", s.handleWhitelist)
		r.Get("/params", s.handleParams)
		r.Get("/sales/{id}", s.handleSale)
		r.Get("/auctions/{id}", s.handleAuction)
		r.Get("/auctions/{id}/bids", s.handleAuctionBids)
		r.Get("/vault/custody/{addr}", s.handleCustody)
		r.Get("/vault/credit/{addr}", s.handleCredit)
		r.Get("/vault/authorized/{addr}", s.handleAuthorized)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseAddrParam(r *http.Request) ([20]byte, bool) {
	addr, err := config.ParseAddress(chi.URLParam(r, "addr"))
	return addr, err == nil
}

func parseIDParam(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleListings(w http.ResponseWriter, _ *http.Request) {
	ids, err := s.market.Listings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"listingIds": ids})
}

func (s *Server) handleTradeListings(w http.ResponseWriter, _ *http.Request) {
	ids, err := s.market.TradeListings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"listingIds": ids})
}

func (s *Server) handleWhitelist(w http.ResponseWriter, _ *http.Request) {
	addrs, err := s.market.Whitelisted()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, hex.EncodeToString(a[:]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contracts": out})
}

func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	treasury := s.market.Treasury()
	escrowAddr := s.vault.Address()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tradeFeeBps":   s.market.TradeFeeBps(),
		"auctionFeeBps": s.market.AuctionFeeBps(),
		"bidTimeBuffer": s.market.BidTimeBuffer(),
		"treasury":      hex.EncodeToString(treasury[:]),
		"escrow":        hex.EncodeToString(escrowAddr[:]),
		"mode":          s.vault.ModeSwitch().Mode().String(),
	})
}

// SaleResult represents a live fixed-price sale returned over RPC.
type SaleResult struct {
	OrderID   uint64 `json:"orderId"`
	ListingID uint64 `json:"listingId"`
	Contract  string `json:"contract"`
	TokenID   string `json:"tokenId"`
	Standard  string `json:"standard"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	Owner     string `json:"owner"`
}

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, ok := s.market.SaleOrderByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "sale order not found")
		return
	}
	writeJSON(w, http.StatusOK, SaleResult{
		OrderID:   order.ID,
		ListingID: order.ListingID,
		Contract:  hex.EncodeToString(order.Contract[:]),
		TokenID:   order.TokenID.String(),
		Standard:  order.Standard.String(),
		Price:     order.Price.String(),
		Currency:  order.Currency.String(),
		Owner:     hex.EncodeToString(order.Owner[:]),
	})
}

// AuctionResult represents a live auction returned over RPC.
type AuctionResult struct {
	AuctionID     uint64 `json:"auctionId"`
	ListingID     uint64 `json:"listingId"`
	Contract      string `json:"contract"`
	TokenID       string `json:"tokenId"`
	Owner         string `json:"owner"`
	StartTime     int64  `json:"startTime"`
	EndTime       int64  `json:"endTime"`
	BasePrice     string `json:"basePrice"`
	ReservePrice  string `json:"reservePrice"`
	BuyPrice      string `json:"buyPrice"`
	MinIncrement  string `json:"minIncrement"`
	HighestBid    string `json:"highestBid"`
	HighestBidder string `json:"highestBidder"`
}

func (s *Server) handleAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}
	a, ok := s.market.AuctionByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "auction not found")
		return
	}
	writeJSON(w, http.StatusOK, AuctionResult{
		AuctionID:     a.ID,
		ListingID:     a.ListingID,
		Contract:      hex.EncodeToString(a.Contract[:]),
		TokenID:       a.TokenID.String(),
		Owner:         hex.EncodeToString(a.Owner[:]),
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		BasePrice:     a.BasePrice.String(),
		ReservePrice:  a.ReservePrice.String(),
		BuyPrice:      a.BuyPrice.String(),
		MinIncrement:  a.MinIncrement.String(),
		HighestBid:    a.HighestBid.String(),
		HighestBidder: hex.EncodeToString(a.HighestBidder[:]),
	})
}

func (s *Server) handleAuctionBids(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}
	bids, err := s.market.AuctionOffers(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]string, 0, len(bids))
	for _, b := range bids {
		out = append(out, hex.EncodeToString(b[:]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bidIds": out})
}

func (s *Server) handleCustody(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddrParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	ids, err := s.vault.CustodiedAssets(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, hex.EncodeToString(id[:]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"custodyIds": out})
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddrParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	credit, err := s.vault.StableCredit(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"credit": credit.String()})
}

func (s *Server) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddrParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authorized": s.vault.IsAuthorized(addr)})
}
