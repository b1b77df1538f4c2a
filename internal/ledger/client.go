// Package ledger talks to the external ledger node that records token
// transfers. The service only reads from it, except for relaying payloads
// that buyers signed themselves.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// Transaction is a token transfer as reported by the ledger. Amount is in
// base units of Token.
type Transaction struct {
	Hash      string
	Status    TxStatus
	Sender    string
	Recipient string
	Token     string
	Amount    *big.Int
}

type Client interface {
	// Transfer relays an already signed payload and returns its reference.
	Transfer(ctx context.Context, signedPayload []byte) (string, error)
	LookupTransaction(ctx context.Context, ref string) (*Transaction, error)
	BalanceOf(ctx context.Context, token, address string) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
}

var (
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	ErrUnavailable         = errors.New("ledger: unavailable")
	ErrRejected            = errors.New("ledger: request rejected")
)

// UnavailableError marks a call whose outcome is unknown: a timeout, a
// transport failure or a 5xx from the node.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ledger %s: unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// SameAddress compares two ledger addresses ignoring case and surrounding
// whitespace. Empty addresses never match.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// LooksLikeAddress reports whether s has the shape of a hex account address.
func LooksLikeAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
