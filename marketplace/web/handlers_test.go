package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database"
	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/bidhaus/bidhaus/marketplace/database/repositories"
	"github.com/bidhaus/bidhaus/marketplace/economy/auction"
	"github.com/bidhaus/bidhaus/marketplace/economy/ledger"
	"github.com/bidhaus/bidhaus/marketplace/economy/reconcile"
	"github.com/bidhaus/bidhaus/marketplace/economy/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// bareServer has no backing stores; it serves the routes that reject
	// input before touching one.
	bareServer *Server

	// testServer is wired to a real database when BIDHAUS_TEST_DB is set.
	testServer *Server
	testDB     *database.DB
)

func TestMain(m *testing.M) {
	bareServer = New(Deps{Version: "test", BidsPerMinute: 1000})

	if os.Getenv("BIDHAUS_TEST_DB") != "" {
		ctx := context.Background()

		db, err := database.New(ctx, database.DBConfig{
			Host:     envOr("BIDHAUS_TEST_DB_HOST", "localhost"),
			Port:     5432,
			User:     envOr("BIDHAUS_TEST_DB_USER", "bidhaus"),
			Password: envOr("BIDHAUS_TEST_DB_PASSWORD", "bidhaus"),
			Database: envOr("BIDHAUS_TEST_DB_NAME", "bidhaus_test"),
			PoolSize: 5,
		})
		if err != nil {
			fmt.Printf("failed to connect to test database: %v\n", err)
			os.Exit(1)
		}
		if err := db.InitializeSchema(ctx); err != nil {
			fmt.Printf("failed to initialize schema: %v\n", err)
			os.Exit(1)
		}

		testDB = db
		testServer = newTestServer(db)
	}

	code := m.Run()
	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newTestServer(db *database.DB) *Server {
	bunDB := db.BunDB()
	wallets := repositories.NewWalletRepository(bunDB)
	transactions := repositories.NewTransactionRepository(bunDB)
	assets := repositories.NewAssetRepository(bunDB)
	auctions := repositories.NewAuctionRepository(bunDB)

	txm := utils.NewMarketTransactionManager(bunDB)
	led := ledger.New(wallets, transactions, txm)

	market, err := auction.NewManager(auctions, assets, transactions, led, txm, auction.NewNotifier("", ""), 128, time.Second)
	if err != nil {
		panic(err)
	}

	return New(Deps{
		DB:            db,
		Wallets:       wallets,
		Transactions:  transactions,
		Ledger:        led,
		Market:        market,
		Sweeper:       auction.NewSweeper(market, auctions, time.Hour),
		Reconciler:    reconcile.New(wallets, transactions, auctions, led, txm, time.Hour),
		Version:       "test",
		BidsPerMinute: 1000,
	})
}

func requireDB(t *testing.T) {
	t.Helper()
	if testServer == nil {
		t.Skip("set BIDHAUS_TEST_DB=1 to run database tests")
	}
	require.NoError(t, testDB.ResetAppTables(context.Background()))
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Pagination *PaginationInfo `json:"pagination"`
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewBuffer(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)

	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func errorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	status, env := doRequest(t, bareServer, http.MethodGet, "/nope", nil)

	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", errorCode(env))
}

func TestCreateWalletRejectsBadInput(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantField  string
	}{
		{"malformed json", "{", ""},
		{"zero user id", map[string]interface{}{"user_id": 0, "username": "alice"}, "user_id"},
		{"negative user id", map[string]interface{}{"user_id": -2, "username": "alice"}, "user_id"},
		{"blank username", map[string]interface{}{"user_id": 2, "username": "   "}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := doRequest(t, bareServer, http.MethodPost, "/wallets", tt.body)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(env))
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, env.Error.Details["field"])
			}
		})
	}
}

func TestWalletRoutesRejectBadUserID(t *testing.T) {
	for _, path := range []string{
		"/wallets/abc",
		"/wallets/0",
		"/wallets/-5",
	} {
		status, env := doRequest(t, bareServer, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(env), path)
	}
}

func TestMutatingRoutesRejectMalformedBodies(t *testing.T) {
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/wallets/2/deposit"},
		{http.MethodPost, "/wallets/2/withdraw"},
		{http.MethodPost, "/assets"},
		{http.MethodPost, "/assets/1/open"},
		{http.MethodPost, "/auctions"},
		{http.MethodPost, "/auctions/Q7PZ/bids"},
		{http.MethodPost, "/auctions/Q7PZ/close"},
	} {
		status, env := doRequest(t, bareServer, tc.method, tc.path, "not json")
		assert.Equal(t, http.StatusBadRequest, status, tc.path)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(env), tc.path)
	}
}

// Integration tests below need PostgreSQL and exercise the whole stack
// through HTTP.

type testActors struct {
	sellerID int64
	aliceID  int64
	bobID    int64
}

func setupActors(t *testing.T) testActors {
	t.Helper()
	actors := testActors{sellerID: 1, aliceID: 2, bobID: 3}

	for _, u := range []struct {
		id   int64
		name string
	}{
		{actors.sellerID, "seller"},
		{actors.aliceID, "alice"},
		{actors.bobID, "bob"},
	} {
		status, _ := doRequest(t, testServer, http.MethodPost, "/wallets",
			map[string]interface{}{"user_id": u.id, "username": u.name})
		require.Equal(t, http.StatusCreated, status)
	}

	for _, id := range []int64{actors.aliceID, actors.bobID} {
		status, _ := doRequest(t, testServer, http.MethodPost, fmt.Sprintf("/wallets/%d/deposit", id),
			map[string]interface{}{"amount": 1000})
		require.Equal(t, http.StatusOK, status)
	}
	return actors
}

// setupLiveAuction creates an open asset for the seller and lists it at
// reserve 100, increment 10.
func setupLiveAuction(t *testing.T, actors testActors) (assetID int64, code string) {
	t.Helper()

	status, env := doRequest(t, testServer, http.MethodPost, "/assets",
		map[string]interface{}{"owner_id": actors.sellerID, "title": "brass astrolabe"})
	require.Equal(t, http.StatusCreated, status)
	var asset assetView
	decodeData(t, env, &asset)

	status, _ = doRequest(t, testServer, http.MethodPost, fmt.Sprintf("/assets/%d/open", asset.ID),
		map[string]interface{}{"owner_id": actors.sellerID})
	require.Equal(t, http.StatusOK, status)

	status, env = doRequest(t, testServer, http.MethodPost, "/auctions", map[string]interface{}{
		"seller_id":      actors.sellerID,
		"asset_id":       asset.ID,
		"reserved_price": 100,
		"min_increment":  10,
		"total_minutes":  60,
	})
	require.Equal(t, http.StatusCreated, status)

	var view auction.View
	decodeData(t, env, &view)
	require.Len(t, view.Code, 4)
	require.Equal(t, "live", view.Status)
	require.Equal(t, int64(100), view.NextCallPrice)

	return asset.ID, view.Code
}

func getWalletView(t *testing.T, userID int64) walletView {
	t.Helper()
	status, env := doRequest(t, testServer, http.MethodGet, fmt.Sprintf("/wallets/%d", userID), nil)
	require.Equal(t, http.StatusOK, status)
	var w walletView
	decodeData(t, env, &w)
	return w
}

func TestWalletLifecycle(t *testing.T) {
	requireDB(t)

	status, env := doRequest(t, testServer, http.MethodPost, "/wallets",
		map[string]interface{}{"user_id": 7, "username": "dana"})
	require.Equal(t, http.StatusCreated, status)
	var w walletView
	decodeData(t, env, &w)
	assert.Equal(t, int64(7), w.UserID)
	assert.Zero(t, w.Balance)

	// Same user again conflicts.
	status, env = doRequest(t, testServer, http.MethodPost, "/wallets",
		map[string]interface{}{"user_id": 7, "username": "dana"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(env))

	status, env = doRequest(t, testServer, http.MethodPost, "/wallets/7/deposit",
		map[string]interface{}{"amount": 500})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &w)
	assert.Equal(t, int64(500), w.Balance)

	status, env = doRequest(t, testServer, http.MethodPost, "/wallets/7/withdraw",
		map[string]interface{}{"amount": 200})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &w)
	assert.Equal(t, int64(300), w.Balance)
	assert.Equal(t, int64(300), w.Available)

	// Overdraw is rejected with the available amount.
	status, env = doRequest(t, testServer, http.MethodPost, "/wallets/7/withdraw",
		map[string]interface{}{"amount": 1000})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorCode(env))
	assert.Equal(t, "300", env.Error.Details["available"])

	status, env = doRequest(t, testServer, http.MethodPost, "/wallets/7/deposit",
		map[string]interface{}{"amount": -5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(env))

	status, env = doRequest(t, testServer, http.MethodGet, "/wallets/99", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(env))

	// The log has one row per movement, newest first.
	status, env = doRequest(t, testServer, http.MethodGet, "/wallets/7/transactions", nil)
	require.Equal(t, http.StatusOK, status)
	var txns []transactionView
	decodeData(t, env, &txns)
	require.Len(t, txns, 2)
	assert.Equal(t, "withdrawal", txns[0].Type)
	assert.Equal(t, "deposit", txns[1].Type)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(2), env.Pagination.Total)
}

func TestAuctionFlow(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)
	assetID, code := setupLiveAuction(t, actors)

	// Alice opens at reserve.
	status, env := doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": actors.aliceID, "amount": 100})
	require.Equal(t, http.StatusOK, status)
	var view auction.View
	decodeData(t, env, &view)
	assert.Equal(t, int64(100), view.CurrentHighestBid)
	assert.Equal(t, actors.aliceID, view.CurrentHighestBidderID)
	assert.Equal(t, int64(110), view.NextCallPrice)

	alice := getWalletView(t, actors.aliceID)
	assert.Equal(t, int64(100), alice.BlockedAmount)
	assert.Equal(t, int64(900), alice.Available)

	// Bob under the call price is rejected and nothing moves.
	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": actors.bobID, "amount": 105})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BID_TOO_LOW", errorCode(env))
	assert.Equal(t, "110", env.Error.Details["min_acceptable"])
	assert.Zero(t, getWalletView(t, actors.bobID).BlockedAmount)

	// Bob at the call price takes the lead and Alice's hold unwinds.
	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": actors.bobID, "amount": 110})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &view)
	assert.Equal(t, actors.bobID, view.CurrentHighestBidderID)

	alice = getWalletView(t, actors.aliceID)
	assert.Zero(t, alice.BlockedAmount)
	assert.Equal(t, int64(1000), alice.Available)
	bob := getWalletView(t, actors.bobID)
	assert.Equal(t, int64(110), bob.BlockedAmount)

	// The leader cannot raise against themselves.
	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": actors.bobID, "amount": 200})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(env))

	// Seller closes early: Bob pays, the asset changes hands.
	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/close",
		map[string]interface{}{"seller_id": actors.sellerID})
	require.Equal(t, http.StatusOK, status)
	var result auction.CloseResult
	decodeData(t, env, &result)
	assert.True(t, result.Settled)
	assert.False(t, result.AlreadyClosed)
	assert.Equal(t, actors.bobID, result.WinnerID)
	assert.Equal(t, int64(110), result.FinalPrice)
	assert.Equal(t, "expired", result.Status)

	bob = getWalletView(t, actors.bobID)
	assert.Equal(t, int64(890), bob.Balance)
	assert.Zero(t, bob.BlockedAmount)
	assert.Equal(t, int64(110), getWalletView(t, actors.sellerID).Balance)

	status, env = doRequest(t, testServer, http.MethodGet, fmt.Sprintf("/assets/%d", assetID), nil)
	require.Equal(t, http.StatusOK, status)
	var asset assetView
	decodeData(t, env, &asset)
	assert.Equal(t, actors.bobID, asset.OwnerID)
	assert.Equal(t, "open_to_auction", asset.Status)

	// Bid history, highest first.
	status, env = doRequest(t, testServer, http.MethodGet, "/auctions/"+code+"/bids", nil)
	require.Equal(t, http.StatusOK, status)
	var bids []bidView
	decodeData(t, env, &bids)
	require.Len(t, bids, 2)
	assert.Equal(t, int64(110), bids[0].Amount)
	assert.Equal(t, "bob", bids[0].BidderName)
	assert.Equal(t, int64(100), bids[1].Amount)

	// Closing again reports the stored outcome without moving money.
	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/close",
		map[string]interface{}{"seller_id": actors.sellerID})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &result)
	assert.True(t, result.AlreadyClosed)
	assert.Equal(t, actors.bobID, result.WinnerID)
	assert.Equal(t, int64(890), getWalletView(t, actors.bobID).Balance)

	// Bids against a closed auction bounce.
	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": actors.aliceID, "amount": 500})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AUCTION_EXPIRED", errorCode(env))
}

func TestSellerCannotBidOnOwnAuction(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)
	_, code := setupLiveAuction(t, actors)

	status, env := doRequest(t, testServer, http.MethodPost, "/wallets/1/deposit",
		map[string]interface{}{"amount": 1000})
	require.Equal(t, http.StatusOK, status)

	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": actors.sellerID, "amount": 100})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(env))
}

func TestBidWithInsufficientFunds(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)
	_, code := setupLiveAuction(t, actors)

	status, _ := doRequest(t, testServer, http.MethodPost, "/wallets",
		map[string]interface{}{"user_id": 9, "username": "pauper"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = doRequest(t, testServer, http.MethodPost, "/wallets/9/deposit",
		map[string]interface{}{"amount": 50})
	require.Equal(t, http.StatusOK, status)

	status, env := doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": 9, "amount": 100})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorCode(env))
	assert.Equal(t, "50", env.Error.Details["available"])
}

func TestCloseWithoutBids(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)
	assetID, code := setupLiveAuction(t, actors)

	// A stranger cannot close a live auction early.
	status, env := doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/close",
		map[string]interface{}{"seller_id": actors.aliceID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(env))

	status, env = doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/close",
		map[string]interface{}{"seller_id": actors.sellerID})
	require.Equal(t, http.StatusOK, status)
	var result auction.CloseResult
	decodeData(t, env, &result)
	assert.False(t, result.Settled)
	assert.Equal(t, "expired_no_bids", result.Status)
	assert.Zero(t, result.WinnerID)

	// Asset back with the seller, listable again.
	status, env = doRequest(t, testServer, http.MethodGet, fmt.Sprintf("/assets/%d", assetID), nil)
	require.Equal(t, http.StatusOK, status)
	var asset assetView
	decodeData(t, env, &asset)
	assert.Equal(t, actors.sellerID, asset.OwnerID)
	assert.Equal(t, "open_to_auction", asset.Status)

	status, env = doRequest(t, testServer, http.MethodPost, "/auctions", map[string]interface{}{
		"seller_id":      actors.sellerID,
		"asset_id":       assetID,
		"reserved_price": 80,
		"min_increment":  5,
		"total_minutes":  30,
	})
	assert.Equal(t, http.StatusCreated, status)
}

func TestAssetCannotBeListedTwice(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)
	assetID, _ := setupLiveAuction(t, actors)

	status, env := doRequest(t, testServer, http.MethodPost, "/auctions", map[string]interface{}{
		"seller_id":      actors.sellerID,
		"asset_id":       assetID,
		"reserved_price": 100,
		"min_increment":  10,
		"total_minutes":  60,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(env))
}

func TestListAndSearchAuctions(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)
	_, code := setupLiveAuction(t, actors)

	status, env := doRequest(t, testServer, http.MethodGet, "/auctions", nil)
	require.Equal(t, http.StatusOK, status)
	var views []auction.View
	decodeData(t, env, &views)
	require.Len(t, views, 1)
	assert.Equal(t, code, views[0].Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(1), env.Pagination.Total)

	status, env = doRequest(t, testServer, http.MethodGet, "/auctions?q=astrolabe", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &views)
	require.Len(t, views, 1)
	assert.Equal(t, code, views[0].Code)

	status, env = doRequest(t, testServer, http.MethodGet, "/auctions?q=zzzzzz", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &views)
	assert.Empty(t, views)
}

func TestSweepSettlesExpiredAuction(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)
	assetID, code := setupLiveAuction(t, actors)

	status, _ := doRequest(t, testServer, http.MethodPost, "/auctions/"+code+"/bids",
		map[string]interface{}{"bidder_id": actors.aliceID, "amount": 100})
	require.Equal(t, http.StatusOK, status)

	// Backdate the auction so the sweeper sees it as expired.
	_, err := testDB.BunDB().NewUpdate().
		Model((*models.Auction)(nil)).
		Set("end_time = ?", time.Now().Add(-time.Minute)).
		Where("code = ?", code).
		Exec(context.Background())
	require.NoError(t, err)

	status, env := doRequest(t, testServer, http.MethodPost, "/admin/sweep", nil)
	require.Equal(t, http.StatusOK, status)
	var sweep struct {
		Closed int `json:"closed"`
	}
	decodeData(t, env, &sweep)
	assert.Equal(t, 1, sweep.Closed)

	assert.Equal(t, int64(900), getWalletView(t, actors.aliceID).Balance)
	assert.Equal(t, int64(100), getWalletView(t, actors.sellerID).Balance)

	status, env = doRequest(t, testServer, http.MethodGet, fmt.Sprintf("/assets/%d", assetID), nil)
	require.Equal(t, http.StatusOK, status)
	var asset assetView
	decodeData(t, env, &asset)
	assert.Equal(t, actors.aliceID, asset.OwnerID)

	// A second sweep finds nothing.
	status, env = doRequest(t, testServer, http.MethodPost, "/admin/sweep", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &sweep)
	assert.Zero(t, sweep.Closed)
}

func TestReconcileCorrectsDriftedWallet(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)

	// Drift Alice's stored balance away from what her log implies.
	_, err := testDB.BunDB().NewUpdate().
		Model((*models.Wallet)(nil)).
		Set("balance = ?", 999999).
		Where("user_id = ?", actors.aliceID).
		Exec(context.Background())
	require.NoError(t, err)

	status, env := doRequest(t, testServer, http.MethodPost, "/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, status)
	var rec struct {
		Corrected int `json:"corrected"`
	}
	decodeData(t, env, &rec)
	assert.Equal(t, 1, rec.Corrected)

	assert.Equal(t, int64(1000), getWalletView(t, actors.aliceID).Balance)
}

func TestRecoverOrphanedHold(t *testing.T) {
	requireDB(t)
	actors := setupActors(t)

	// Fabricate a hold whose auction does not exist.
	ctx := context.Background()
	_, err := testDB.BunDB().NewUpdate().
		Model((*models.Wallet)(nil)).
		Set("blocked_amount = ?", 75).
		Where("user_id = ?", actors.bobID).
		Exec(ctx)
	require.NoError(t, err)
	_, err = testDB.BunDB().NewInsert().
		Model(&models.WalletTransaction{
			ID:        "test-orphan-hold",
			UserID:    actors.bobID,
			Type:      models.TransactionBidBlocked,
			Amount:    75,
			AuctionID: 424242,
			AssetID:   1,
			CreatedAt: time.Now(),
		}).
		Exec(ctx)
	require.NoError(t, err)

	status, env := doRequest(t, testServer, http.MethodPost, "/admin/recover-blocks", nil)
	require.Equal(t, http.StatusOK, status)
	var rec struct {
		Released int `json:"released"`
	}
	decodeData(t, env, &rec)
	assert.Equal(t, 1, rec.Released)

	bob := getWalletView(t, actors.bobID)
	assert.Zero(t, bob.BlockedAmount)
	assert.Equal(t, int64(1000), bob.Available)
}

func TestHealthEndpoint(t *testing.T) {
	requireDB(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := testServer.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthCheck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "up", health.Components["database"].Status)
}
