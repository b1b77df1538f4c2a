package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPClient is a Client for the node's JSON REST API.
type HTTPClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *logrus.Entry
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logrus.WithField("component", "ledger"),
	}
}

type transferRequest struct {
	SignedPayload string `json:"signed_payload"`
}

type transferResponse struct {
	Hash string `json:"hash"`
}

type transactionResponse struct {
	Hash      string `json:"hash"`
	Status    string `json:"status"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type allowanceResponse struct {
	Allowance string `json:"allowance"`
}

func (c *HTTPClient) Transfer(ctx context.Context, signedPayload []byte) (string, error) {
	if len(signedPayload) == 0 {
		return "", fmt.Errorf("%w: empty signed payload", ErrRejected)
	}

	body := transferRequest{SignedPayload: base64.StdEncoding.EncodeToString(signedPayload)}
	var resp transferResponse
	if err := c.do(ctx, "transfer", http.MethodPost, "/v1/transactions", body, &resp); err != nil {
		return "", err
	}
	if resp.Hash == "" {
		return "", &UnavailableError{Op: "transfer", Err: fmt.Errorf("node returned empty hash")}
	}
	return resp.Hash, nil
}

func (c *HTTPClient) LookupTransaction(ctx context.Context, ref string) (*Transaction, error) {
	var resp transactionResponse
	path := "/v1/transactions/" + url.PathEscape(ref)
	if err := c.do(ctx, "lookup", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	amount, err := parseBaseUnits(resp.Amount)
	if err != nil {
		return nil, &UnavailableError{Op: "lookup", Err: err}
	}

	status := TxStatus(strings.ToLower(resp.Status))
	switch status {
	case TxStatusPending, TxStatusConfirmed, TxStatusFailed:
	default:
		return nil, &UnavailableError{Op: "lookup", Err: fmt.Errorf("unknown transaction status %q", resp.Status)}
	}

	return &Transaction{
		Hash:      resp.Hash,
		Status:    status,
		Sender:    resp.Sender,
		Recipient: resp.Recipient,
		Token:     resp.Token,
		Amount:    amount,
	}, nil
}

func (c *HTTPClient) BalanceOf(ctx context.Context, token, address string) (*big.Int, error) {
	var resp balanceResponse
	path := fmt.Sprintf("/v1/accounts/%s/balances/%s", url.PathEscape(address), url.PathEscape(token))
	if err := c.do(ctx, "balance", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	v, err := parseBaseUnits(resp.Balance)
	if err != nil {
		return nil, &UnavailableError{Op: "balance", Err: err}
	}
	return v, nil
}

func (c *HTTPClient) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	var resp allowanceResponse
	path := fmt.Sprintf("/v1/accounts/%s/allowances/%s/%s",
		url.PathEscape(owner), url.PathEscape(token), url.PathEscape(spender))
	if err := c.do(ctx, "allowance", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	v, err := parseBaseUnits(resp.Allowance)
	if err != nil {
		return nil, &UnavailableError{Op: "allowance", Err: err}
	}
	return v, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ledger %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ledger %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("op", op).Warn("Ledger request failed")
		return &UnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && op == "lookup":
		return ErrTransactionNotFound
	case resp.StatusCode >= 500 || transientStatus(resp.StatusCode):
		c.logger.WithFields(logrus.Fields{"op": op, "status": resp.StatusCode}).Warn("Ledger node error")
		return &UnavailableError{Op: op, Err: fmt.Errorf("node returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", ErrRejected, op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UnavailableError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// transientStatus reports 4xx answers that say "not now" rather than "no".
func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return false
}
