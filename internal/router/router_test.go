package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/handlers"
	"github.com/javajoker/vidmarket-backend/internal/ledger"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

const (
	recipient = "0x9999999999999999999999999999999999999999"
	token     = "0x7777777777777777777777777777777777777777"
	buyer     = "0x2222222222222222222222222222222222222222"
)

// stubLedger answers lookups from a fixed set of transactions.
type stubLedger struct {
	mu  sync.Mutex
	txs map[string]*ledger.Transaction
}

func (l *stubLedger) add(ref string, status ledger.TxStatus, sender string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[ref] = &ledger.Transaction{
		Hash:      ref,
		Status:    status,
		Sender:    sender,
		Recipient: recipient,
		Token:     token,
		Amount:    big.NewInt(amount),
	}
}

func (l *stubLedger) Transfer(ctx context.Context, signedPayload []byte) (string, error) {
	return "", ledger.ErrRejected
}

func (l *stubLedger) LookupTransaction(ctx context.Context, ref string) (*ledger.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[ref]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (l *stubLedger) BalanceOf(ctx context.Context, token, address string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (l *stubLedger) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	return big.NewInt(0), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

type RouterTestSuite struct {
	suite.Suite
	engine *gin.Engine
	ledger *stubLedger
}

func (suite *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.ledger = &stubLedger{txs: make(map[string]*ledger.Transaction)}
	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{RateLimit: false},
		JWT: config.JWTConfig{
			SecretKey:       "router-test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
			ViewingTokenTTL: 24,
		},
		Ledger: config.LedgerConfig{
			RecipientAddress: recipient,
			TokenAddress:     token,
			TokenDecimals:    6,
			Currency:         "USDC",
			TimeoutSeconds:   5,
			QuoteTTLMinutes:  15,
		},
		Payment: config.PaymentConfig{Currency: "usd"},
		Streaming: config.StreamingConfig{
			ViewWindowMinutes: 30,
			UploadMaxBytes:    1 << 20,
		},
	}

	suite.engine = Initialize(Dependencies{
		Gateway: store.NewMemoryStore(),
		Ledger:  suite.ledger,
		Content: contentstore.NewRouter(contentstore.NewMemoryStore()),
		Config:  cfg,
	})
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (suite *RouterTestSuite) do(method, path, token string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil && headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.engine.ServeHTTP(w, req)
	return w
}

func (suite *RouterTestSuite) doJSON(method, path, token string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		suite.Require().NoError(err)
	}
	return suite.do(method, path, token, body, headers)
}

func (suite *RouterTestSuite) decode(w *httptest.ResponseRecorder, data interface{}) envelope {
	var env envelope
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		suite.Require().NoError(json.Unmarshal(env.Data, data))
	}
	return env
}

func (suite *RouterTestSuite) register(handle string) (token, accountID string) {
	w := suite.doJSON(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"handle":   handle,
		"email":    handle + "@example.com",
		"password": "Str0ng!Pass",
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		Token   string `json:"token"`
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
	}
	suite.decode(w, &data)
	suite.Require().NotEmpty(data.Token)
	return data.Token, data.Account.ID
}

func (suite *RouterTestSuite) createAsset(token string, payload map[string]interface{}) string {
	w := suite.doJSON(http.MethodPost, "/v1/assets", token, payload, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		Asset struct {
			ID string `json:"id"`
		} `json:"asset"`
	}
	suite.decode(w, &data)
	suite.Require().NotEmpty(data.Asset.ID)
	return data.Asset.ID
}

func (suite *RouterTestSuite) upload(token, assetID string, video []byte) {
	w := suite.do(http.MethodPut, "/v1/assets/"+assetID+"/content", token, video, map[string]string{
		"Content-Type":           "video/mp4",
		handlers.FilenameHeader: "clip.mp4",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var data struct {
		ContentID string `json:"content_id"`
		Locator   string `json:"locator"`
	}
	suite.decode(w, &data)
	suite.NotEmpty(data.ContentID)
	suite.NotEmpty(data.Locator)
}

// videoBytes returns n bytes that start with an MP4 ftyp box.
func videoBytes(n int) []byte {
	header := []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
	data := make([]byte, n)
	copy(data, header)
	for i := len(header); i < n; i++ {
		data[i] = byte(i % 251)
	}
	return data
}

func (suite *RouterTestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", "", nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal("healthy", body.Status)
	suite.Equal("ok", body.Checks["database"])
	suite.Equal("ok", body.Checks["content_store"])
}

func (suite *RouterTestSuite) TestRegisterLoginAndProfile() {
	suite.register("alice")

	w := suite.doJSON(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "Str0ng!Pass",
	}, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	suite.decode(w, &login)

	w = suite.do(http.MethodGet, "/v1/auth/me", login.Token, nil, nil)
	suite.Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Contains(w.Body.String(), `"handle":"alice"`)

	w = suite.doJSON(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodGet, "/v1/auth/me", "", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *RouterTestSuite) TestCreateAssetValidation() {
	token, _ := suite.register("creator")

	w := suite.doJSON(http.MethodPost, "/v1/assets", token, map[string]interface{}{
		"title":        "x",
		"monetization": "pay-per-view",
		"price":        "1",
	}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	env := suite.decode(w, nil)
	suite.Require().NotNil(env.Error)
	suite.Equal("VALIDATION_ERROR", env.Error.Code)

	w = suite.doJSON(http.MethodPost, "/v1/assets", "", map[string]interface{}{
		"title":        "No auth",
		"monetization": "free",
	}, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *RouterTestSuite) TestPayPerViewFlow() {
	token, _ := suite.register("creator")
	assetID := suite.createAsset(token, map[string]interface{}{
		"title":        "Paid video",
		"monetization": "pay-per-view",
		"price":        "2.5",
	})
	video := videoBytes(4096)
	suite.upload(token, assetID, video)

	streamPath := "/v1/assets/" + assetID + "/stream"

	// Anonymous viewers are told to sign in or pay.
	w := suite.do(http.MethodGet, streamPath, "", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
	env := suite.decode(w, nil)
	suite.Equal("ACCESS_DENIED", env.Error.Code)

	buyerHeaders := map[string]string{handlers.BuyerAddressHeader: buyer}

	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", nil, buyerHeaders)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var quoted struct {
		Quote struct {
			AmountBaseUnits string `json:"amount_base_units"`
			Recipient       string `json:"recipient"`
		} `json:"quote"`
	}
	suite.decode(w, &quoted)
	suite.Equal("2500000", quoted.Quote.AmountBaseUnits)
	suite.True(strings.EqualFold(recipient, quoted.Quote.Recipient))

	// An unknown transaction does not unlock anything.
	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"transaction_ref": "0xmissing",
	}, buyerHeaders)
	suite.Equal(http.StatusPaymentRequired, w.Code)

	suite.ledger.add("0xpending", ledger.TxStatusPending, buyer, 2_500_000)
	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"transaction_ref": "0xpending",
	}, buyerHeaders)
	suite.Equal(http.StatusConflict, w.Code)
	env = suite.decode(w, nil)
	suite.True(env.Error.Retryable)

	suite.ledger.add("0xpaid", ledger.TxStatusConfirmed, buyer, 2_500_000)
	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"transaction_ref": "0xpaid",
	}, buyerHeaders)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var confirmed struct {
		ViewingToken string `json:"viewing_token"`
	}
	suite.decode(w, &confirmed)
	suite.Require().NotEmpty(confirmed.ViewingToken)
	viewing := confirmed.ViewingToken

	// Confirming again is idempotent and hands out no new token.
	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"transaction_ref": "0xpaid",
	}, buyerHeaders)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"already_purchased":true`)
	suite.NotContains(w.Body.String(), "viewing_token")

	w = suite.do(http.MethodGet, "/v1/assets/"+assetID+"/access", viewing, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"has_access":true`)

	w = suite.do(http.MethodGet, streamPath, viewing, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(video, w.Body.Bytes())
	suite.Equal("bytes", w.Header().Get("Accept-Ranges"))
	suite.Contains(w.Header().Get("Content-Type"), "video/")

	// Media elements pass the token in the query string.
	w = suite.do(http.MethodGet, streamPath+"?token="+viewing, "", nil, map[string]string{"Range": "bytes=0-999"})
	suite.Equal(http.StatusPartialContent, w.Code)
	suite.Equal(fmt.Sprintf("bytes 0-999/%d", len(video)), w.Header().Get("Content-Range"))
	suite.Equal(video[:1000], w.Body.Bytes())

	w = suite.do(http.MethodGet, streamPath, viewing, nil, map[string]string{"Range": "bytes=5000-"})
	suite.Equal(http.StatusRequestedRangeNotSatisfiable, w.Code)
	suite.Equal(fmt.Sprintf("bytes */%d", len(video)), w.Header().Get("Content-Range"))
}

func (suite *RouterTestSuite) TestBuyerAddressHeaderDoesNotGrantAccess() {
	token, _ := suite.register("creator")
	assetID := suite.createAsset(token, map[string]interface{}{
		"title":        "Paid video",
		"monetization": "pay-per-view",
		"price":        "2.5",
	})
	suite.upload(token, assetID, videoBytes(2048))
	otherID := suite.createAsset(token, map[string]interface{}{
		"title":        "Other paid video",
		"monetization": "pay-per-view",
		"price":        "2.5",
	})
	suite.upload(token, otherID, videoBytes(1024))

	suite.ledger.add("0xpaid", ledger.TxStatusConfirmed, buyer, 2_500_000)
	w := suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"transaction_ref": "0xpaid",
	}, map[string]string{handlers.BuyerAddressHeader: buyer})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var confirmed struct {
		ViewingToken string `json:"viewing_token"`
	}
	suite.decode(w, &confirmed)

	// The paying address is public on the ledger, so naming it proves nothing.
	replayed := map[string]string{handlers.BuyerAddressHeader: buyer}
	w = suite.do(http.MethodGet, "/v1/assets/"+assetID+"/stream", "", nil, replayed)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodGet, "/v1/assets/"+assetID+"/access?buyer="+buyer, "", nil, replayed)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"has_access":false`)

	// A viewing token is bound to the asset it was issued for.
	w = suite.do(http.MethodGet, "/v1/assets/"+otherID+"/stream", confirmed.ViewingToken, nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	// Viewing tokens are not sessions.
	w = suite.do(http.MethodGet, "/v1/auth/me", confirmed.ViewingToken, nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *RouterTestSuite) TestAnonymousBuyerMustBeAnAddress() {
	token, _ := suite.register("creator")
	assetID := suite.createAsset(token, map[string]interface{}{
		"title":        "Paid video",
		"monetization": "pay-per-view",
		"price":        "2.5",
	})
	suite.ledger.add("0xpaid", ledger.TxStatusConfirmed, buyer, 2_500_000)

	w := suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"buyer":           "mallory",
		"transaction_ref": "0xpaid",
	}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	env := suite.decode(w, nil)
	suite.Equal("BAD_REQUEST", env.Error.Code)

	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"transaction_ref": "0xpaid",
	}, map[string]string{handlers.BuyerAddressHeader: "mallory"})
	suite.Equal(http.StatusBadRequest, w.Code)

	// The ledger sender is still checked for a well-formed address.
	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", map[string]string{
		"transaction_ref": "0xpaid",
	}, map[string]string{handlers.BuyerAddressHeader: "0x3333333333333333333333333333333333333333"})
	suite.Equal(http.StatusPaymentRequired, w.Code)
}

func (suite *RouterTestSuite) TestFreeAssetStreamsAnonymously() {
	token, _ := suite.register("creator")
	assetID := suite.createAsset(token, map[string]interface{}{
		"title":        "Free video",
		"monetization": "free",
	})
	video := videoBytes(2048)
	suite.upload(token, assetID, video)

	w := suite.do(http.MethodGet, "/v1/assets/"+assetID+"/stream", "", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(video, w.Body.Bytes())

	w = suite.doJSON(http.MethodPost, "/v1/assets/"+assetID+"/purchase", "", nil,
		map[string]string{handlers.BuyerAddressHeader: buyer})
	suite.Equal(http.StatusForbidden, w.Code)
	env := suite.decode(w, nil)
	suite.Equal("ASSET_NOT_FOR_SALE", env.Error.Code)
}

func (suite *RouterTestSuite) TestStreamBeforeUpload() {
	token, _ := suite.register("creator")
	assetID := suite.createAsset(token, map[string]interface{}{
		"title":        "Coming soon",
		"monetization": "free",
	})

	w := suite.do(http.MethodGet, "/v1/assets/"+assetID+"/stream", "", nil, nil)
	suite.Equal(http.StatusBadGateway, w.Code)
	env := suite.decode(w, nil)
	suite.Equal("CONTENT_UNAVAILABLE", env.Error.Code)
}

func (suite *RouterTestSuite) TestUploadRequiresOwner() {
	creatorToken, _ := suite.register("creator")
	otherToken, _ := suite.register("other")
	assetID := suite.createAsset(creatorToken, map[string]interface{}{
		"title":        "Mine",
		"monetization": "free",
	})

	w := suite.do(http.MethodPut, "/v1/assets/"+assetID+"/content", otherToken, videoBytes(1024),
		map[string]string{"Content-Type": "video/mp4"})
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *RouterTestSuite) TestSubscriptionUnlocksCreatorCatalog() {
	creatorToken, creatorID := suite.register("creator")
	assetID := suite.createAsset(creatorToken, map[string]interface{}{
		"title":        "Members only",
		"monetization": "subscription",
	})
	suite.upload(creatorToken, assetID, videoBytes(1024))

	fanToken, _ := suite.register("fan")
	streamPath := "/v1/assets/" + assetID + "/stream"

	w := suite.do(http.MethodGet, streamPath, fanToken, nil, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do(http.MethodPost, "/v1/creators/"+creatorID+"/subscription", fanToken, nil, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = suite.do(http.MethodGet, streamPath, fanToken, nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodGet, "/v1/subscriptions", fanToken, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), creatorID)

	w = suite.do(http.MethodDelete, "/v1/creators/"+creatorID+"/subscription", fanToken, nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodGet, streamPath, fanToken, nil, nil)
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *RouterTestSuite) TestListAssetsAndViews() {
	token, _ := suite.register("creator")
	assetID := suite.createAsset(token, map[string]interface{}{
		"title":        "Listed",
		"monetization": "free",
	})

	w := suite.do(http.MethodPatch, "/v1/assets/"+assetID+"/views", "", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"view_count":1`)

	w = suite.do(http.MethodGet, "/v1/assets", "", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), assetID)

	w = suite.do(http.MethodGet, "/v1/assets/not-a-uuid", "", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}
