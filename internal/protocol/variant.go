package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolPriceFetcher/internal/chain"
	"poolPriceFetcher/internal/model"
)

// Kind tags a supported storage layout.
type Kind string

const (
	// KindUniV2 is the constant-product reserves layout.
	KindUniV2 Kind = "univ2"
	// KindUniV3 is the concentrated-liquidity sqrtPriceX96 layout.
	KindUniV3 Kind = "univ3"
)

// layout is the per-kind capability set. Implementations hold no state.
type layout interface {
	label() string
	slot() common.Hash
	tokens(ctx context.Context, caller chain.Caller, pool common.Address) ([2]common.Address, error)
	decode(word *uint256.Int, invert bool, denoms [2]*uint256.Int, precision *uint256.Int) (*uint256.Int, error)
}

var layouts = map[Kind]layout{
	KindUniV2: uniV2{},
	KindUniV3: uniV3{},
}

// Kinds returns the supported kinds.
func Kinds() []Kind {
	return []Kind{KindUniV2, KindUniV3}
}

// ParseKind normalizes a configured protocol type.
func ParseKind(input string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(input)))
	if _, ok := layouts[kind]; !ok {
		return "", fmt.Errorf("%w: unsupported protocol type %q", model.ErrConfiguration, input)
	}
	return kind, nil
}

// Variant binds a pool to the layout used to decode its storage.
type Variant struct {
	kind Kind
	pool common.Address
}

// NewVariant validates kind and pool.
func NewVariant(kind Kind, pool common.Address) (Variant, error) {
	if _, ok := layouts[kind]; !ok {
		return Variant{}, fmt.Errorf("%w: unsupported protocol type %q", model.ErrConfiguration, kind)
	}
	if pool == (common.Address{}) {
		return Variant{}, fmt.Errorf("%w: %s pool address is zero", model.ErrConfiguration, kind)
	}
	return Variant{kind: kind, pool: pool}, nil
}

// ParseVariant builds a Variant from configuration strings.
func ParseVariant(kind string, pool string) (Variant, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Variant{}, err
	}
	pool = strings.TrimSpace(pool)
	if !common.IsHexAddress(pool) {
		return Variant{}, fmt.Errorf("%w: invalid pool address %q", model.ErrConfiguration, pool)
	}
	return NewVariant(k, common.HexToAddress(pool))
}

// Kind returns the protocol kind.
func (v Variant) Kind() Kind { return v.kind }

// Pool returns the pool address.
func (v Variant) Pool() common.Address { return v.pool }

// Name returns a label such as "UniV2: 0xabc...".
func (v Variant) Name() string {
	l, ok := layouts[v.kind]
	if !ok {
		return fmt.Sprintf("unknown: %s", v.pool.Hex())
	}
	return fmt.Sprintf("%s: %s", l.label(), v.pool.Hex())
}

// StorageLocation returns the contract and slot holding the price state.
func (v Variant) StorageLocation() (common.Address, common.Hash) {
	l, ok := layouts[v.kind]
	if !ok {
		return v.pool, common.Hash{}
	}
	return v.pool, l.slot()
}

// IdentifyTokens returns the pool tokens in protocol order.
func (v Variant) IdentifyTokens(ctx context.Context, caller chain.Caller) ([2]common.Address, error) {
	l, err := v.layout()
	if err != nil {
		return [2]common.Address{}, err
	}
	return l.tokens(ctx, caller, v.pool)
}

// DecodePrice converts a raw storage word into a fixed-point price.
// denoms are the decimal denominators of token0 and token1; precision is
// 10^precisionExponent. It is safe for concurrent use.
func (v Variant) DecodePrice(word *uint256.Int, invert bool, denoms [2]*uint256.Int, precision *uint256.Int) (*uint256.Int, error) {
	l, err := v.layout()
	if err != nil {
		return nil, err
	}
	if word == nil || denoms[0] == nil || denoms[1] == nil || precision == nil {
		return nil, fmt.Errorf("%w: nil operand", model.ErrArithmetic)
	}
	return l.decode(word, invert, denoms, precision)
}

func (v Variant) layout() (layout, error) {
	l, ok := layouts[v.kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported protocol type %q", model.ErrConfiguration, v.kind)
	}
	return l, nil
}

// quo divides and reports a zero divisor instead of returning zero.
func quo(num, den *uint256.Int, what string) (*uint256.Int, error) {
	if den.IsZero() {
		return nil, fmt.Errorf("%w: division by zero %s", model.ErrArithmetic, what)
	}
	return new(uint256.Int).Div(num, den), nil
}

func mul(values ...*uint256.Int) *uint256.Int {
	out := uint256.NewInt(1)
	for _, v := range values {
		out.Mul(out, v)
	}
	return out
}
