package protocol

import "github.com/ethereum/go-ethereum/common"

// PriceSource is a configured pool to price.
type PriceSource struct {
	Name    string
	Invert  bool
	Variant Variant
}

// SourceName returns the configured name, falling back to the variant label.
func (p PriceSource) SourceName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Variant.Name()
}

// ParsedPriceSource is a PriceSource with its token pair resolved in protocol order.
type ParsedPriceSource struct {
	PriceSource
	Tokens [2]common.Address
}

// BaseQuote returns the (base, quote) tokens according to Invert.
func (p ParsedPriceSource) BaseQuote() (common.Address, common.Address) {
	if p.Invert {
		return p.Tokens[1], p.Tokens[0]
	}
	return p.Tokens[0], p.Tokens[1]
}
