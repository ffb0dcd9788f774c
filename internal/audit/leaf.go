package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLeafMismatch means an expense no longer hashes to the leaf recorded
// when it was created.
var ErrLeafMismatch = errors.New("audit leaf does not match expense")

// Precision is the resolution of hashed timestamps. It matches what
// PostgreSQL stores, so a leaf can be rebuilt from a loaded expense.
const Precision = time.Microsecond

var encMode cbor.EncMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("audit: CBOR encoder initialization failed: " + err.Error())
	}
}

// Leaf is the projection of an expense that goes into the tree. Only
// these fields are covered; approval state changes do not move the root.
type Leaf struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	PayerID     uuid.UUID
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// leafRecord is the wire shape of a Leaf. Integer keys keep the encoding
// compact; amounts and times are fixed-format strings so equal values
// always encode to equal bytes.
type leafRecord struct {
	ID          []byte `cbor:"1,keyasint"`
	EventID     []byte `cbor:"2,keyasint"`
	PayerID     []byte `cbor:"3,keyasint"`
	Amount      string `cbor:"4,keyasint"`
	Description string `cbor:"5,keyasint"`
	CreatedAt   string `cbor:"6,keyasint"`
}

// Encode returns the deterministic CBOR encoding of l.
func (l Leaf) Encode() ([]byte, error) {
	rec := leafRecord{
		ID:          l.ID[:],
		EventID:     l.EventID[:],
		PayerID:     l.PayerID[:],
		Amount:      l.Amount.StringFixed(2),
		Description: l.Description,
		CreatedAt:   l.CreatedAt.UTC().Truncate(Precision).Format(time.RFC3339Nano),
	}

	data, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding audit leaf %s: %w", l.ID, err)
	}

	return data, nil
}

// Hash returns the leaf-domain hash of the encoded leaf.
func (l Leaf) Hash() (Hash, error) {
	data, err := l.Encode()
	if err != nil {
		return Hash{}, err
	}

	return HashLeaf(data), nil
}
