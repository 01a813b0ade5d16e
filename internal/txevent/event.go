// Package txevent defines the transaction notification model shared by the
// stream client and the transaction manager, along with the parser for the
// pipe-delimited wire payload pushed by the backend.
package txevent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gabapcia/walletstream/internal/pkg/validator"

	"github.com/shopspring/decimal"
)

// ErrMalformedPayload is returned when a stream payload cannot be decoded
// into a Transaction.
var ErrMalformedPayload = errors.New("malformed transaction payload")

const (
	// payloadSeparator splits the fields of a wire payload.
	payloadSeparator = "|"

	// payloadFieldCount is the number of fields in a wire payload:
	// direction|type|value|timestamp.
	payloadFieldCount = 4
)

// Transaction is a single wallet transaction as reported by the backend.
type Transaction struct {
	Direction string `json:"direction" validate:"required"` // "IN" or "OUT" as sent by the backend
	Type      string `json:"type" validate:"required"`      // transfer kind (native, token, nft...)
	Value     string `json:"value" validate:"required"`     // amount, or token ID for non-fungible transfers
	Timestamp int64  `json:"timestamp" validate:"gt=0"`     // unix timestamp, used as the dedup key
}

// Decimal parses Value as an arbitrary precision number.
//
// It fails for values that are not numeric, such as some token IDs.
func (t Transaction) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(t.Value)
}

// Event is a Transaction bound to the wallet address it was delivered for.
type Event struct {
	WalletAddress string      `json:"walletAddress" validate:"required"`
	Transaction   Transaction `json:"transaction"`
	ReceivedAt    time.Time   `json:"receivedAt"`
}

// NormalizeAddress returns the canonical form of a wallet address used as a
// map key across the module: surrounding spaces removed and lowercased.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NewEvent builds an Event for the given wallet address, normalizing it.
func NewEvent(address string, tx Transaction, receivedAt time.Time) Event {
	return Event{
		WalletAddress: NormalizeAddress(address),
		Transaction:   tx,
		ReceivedAt:    receivedAt,
	}
}

// ParseTransaction decodes a "direction|type|value|timestamp" payload.
//
// Fields are trimmed. Any structural or validation failure is reported
// wrapped in ErrMalformedPayload.
func ParseTransaction(payload string) (Transaction, error) {
	fields := strings.Split(strings.TrimSpace(payload), payloadSeparator)
	if len(fields) != payloadFieldCount {
		return Transaction{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedPayload, payloadFieldCount, len(fields))
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	timestamp, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: invalid timestamp %q: %w", ErrMalformedPayload, fields[3], err)
	}

	tx := Transaction{
		Direction: fields[0],
		Type:      fields[1],
		Value:     fields[2],
		Timestamp: timestamp,
	}

	if err := validator.Validate(tx); err != nil {
		return Transaction{}, errors.Join(ErrMalformedPayload, err)
	}

	return tx, nil
}
