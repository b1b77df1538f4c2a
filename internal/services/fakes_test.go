package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/ledger"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

const (
	testRecipient = "0x9999999999999999999999999999999999999999"
	testToken     = "0x7777777777777777777777777777777777777777"
	testBuyer     = "0x2222222222222222222222222222222222222222"
	otherBuyer    = "0x3333333333333333333333333333333333333333"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
			ViewingTokenTTL: 24,
		},
		Ledger: config.LedgerConfig{
			RecipientAddress: testRecipient,
			TokenAddress:     testToken,
			TokenDecimals:    6,
			Currency:         "USDC",
			TimeoutSeconds:   5,
			QuoteTTLMinutes:  15,
		},
		Payment: config.PaymentConfig{
			StripeSecretKey: "sk_test_dummy",
			Currency:        "usd",
		},
		Streaming: config.StreamingConfig{
			ViewWindowMinutes: 30,
			UploadMaxBytes:    1 << 20,
		},
		Email: config.EmailConfig{
			SMTPHost:  "smtp.example.com",
			SMTPPort:  "587",
			FromEmail: "noreply@example.com",
			FromName:  "VidMarket",
			OpsEmail:  "ops@example.com",
		},
		Frontend: config.FrontendConfig{BaseURL: "https://vidmarket.test"},
	}
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

// baseUnits parses a decimal token amount into 6 decimal base units.
func baseUnits(amount string) *big.Int {
	parts := strings.SplitN(amount, ".", 2)
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	frac += strings.Repeat("0", 6-len(frac))
	v, _ := new(big.Int).SetString(parts[0]+frac, 10)
	return v
}

type fakeLedger struct {
	mu         sync.Mutex
	txs        map[string]*ledger.Transaction
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	err        error
	lookups    int
	transfers  [][]byte
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		txs:        make(map[string]*ledger.Transaction),
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
	}
}

func (f *fakeLedger) addTx(ref string, status ledger.TxStatus, sender, recipient, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[ref] = &ledger.Transaction{
		Hash:      ref,
		Status:    status,
		Sender:    sender,
		Recipient: recipient,
		Token:     testToken,
		Amount:    baseUnits(amount),
	}
}

func (f *fakeLedger) Transfer(ctx context.Context, signedPayload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.transfers = append(f.transfers, signedPayload)
	return "0xrelayed", nil
}

func (f *fakeLedger) LookupTransaction(ctx context.Context, ref string) (*ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	tx, ok := f.txs[ref]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (f *fakeLedger) BalanceOf(ctx context.Context, token, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.balances[strings.ToLower(token+"|"+address)]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeLedger) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.allowances[strings.ToLower(token+"|"+owner+"|"+spender)]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeLedger) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

// spyContentStore wraps the in-memory store with call counters and
// failure injection.
type spyContentStore struct {
	*contentstore.MemoryStore
	mu      sync.Mutex
	puts    int
	gets    int
	spans   [][2]int64
	putErr  error
	getErr  error
	tamper  bool
	corrupt bool
}

func newSpyContentStore() *spyContentStore {
	return &spyContentStore{MemoryStore: contentstore.NewMemoryStore()}
}

func (s *spyContentStore) Put(ctx context.Context, in contentstore.PutInput) (*contentstore.Object, error) {
	s.mu.Lock()
	s.puts++
	putErr, tamper := s.putErr, s.tamper
	s.mu.Unlock()
	if putErr != nil {
		return nil, putErr
	}
	obj, err := s.MemoryStore.Put(ctx, in)
	if err != nil {
		return nil, err
	}
	if tamper {
		obj.Proof.Size++
	}
	return obj, nil
}

func (s *spyContentStore) GetRange(ctx context.Context, contentID string, offset, length int64) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	s.gets++
	s.spans = append(s.spans, [2]int64{offset, length})
	getErr, corrupt := s.getErr, s.corrupt
	s.mu.Unlock()
	if getErr != nil {
		return nil, 0, getErr
	}
	rc, size, err := s.MemoryStore.GetRange(ctx, contentID, offset, length)
	if err != nil || !corrupt {
		return rc, size, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, 0, err
	}
	if len(data) > 0 {
		data[len(data)-1] ^= 0xff
	}
	return io.NopCloser(bytes.NewReader(data)), size, nil
}

func (s *spyContentStore) reads() [][2]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]int64(nil), s.spans...)
}

func (s *spyContentStore) calls() (puts, gets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts, s.gets
}

// flakyGateway fails selected writes on top of the memory store.
type flakyGateway struct {
	*store.MemoryStore
	setContentErr error
	incrementErr  error
}

func (g *flakyGateway) SetAssetContent(ctx context.Context, id uuid.UUID, locator string, proof *models.StorageProof) error {
	if g.setContentErr != nil {
		return g.setContentErr
	}
	return g.MemoryStore.SetAssetContent(ctx, id, locator, proof)
}

func (g *flakyGateway) IncrementAssetViews(ctx context.Context, id uuid.UUID) (int64, error) {
	if g.incrementErr != nil {
		return 0, g.incrementErr
	}
	return g.MemoryStore.IncrementAssetViews(ctx, id)
}

var errBoom = errors.New("boom")
