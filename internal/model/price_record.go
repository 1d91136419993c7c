package model

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PriceRecord is the price of one source at one block.
type PriceRecord struct {
	BlockNumber uint64
	Source      string
	Price       *uint256.Int
	BaseToken   common.Address
	QuoteToken  common.Address
}

type priceRecordJSON struct {
	BlockNumber uint64 `json:"block_num"`
	Source      string `json:"source"`
	Price       string `json:"price"`
	QuoteToken  string `json:"quote_token"`
	BaseToken   string `json:"base_token"`
}

// PriceDecimal renders the fixed-point price with precision fractional digits.
func (r PriceRecord) PriceDecimal(precision uint8) decimal.Decimal {
	if r.Price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(r.Price.ToBig(), -int32(precision))
}

// MarshalJSON encodes the price as a base-10 string to keep full precision.
func (r PriceRecord) MarshalJSON() ([]byte, error) {
	price := "0"
	if r.Price != nil {
		price = r.Price.Dec()
	}
	return json.Marshal(priceRecordJSON{
		BlockNumber: r.BlockNumber,
		Source:      r.Source,
		Price:       price,
		QuoteToken:  r.QuoteToken.Hex(),
		BaseToken:   r.BaseToken.Hex(),
	})
}

// UnmarshalJSON decodes a PriceRecord from JSON.
func (r *PriceRecord) UnmarshalJSON(data []byte) error {
	var raw priceRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := uint256.FromDecimal(raw.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*r = PriceRecord{
		BlockNumber: raw.BlockNumber,
		Source:      raw.Source,
		Price:       price,
		QuoteToken:  common.HexToAddress(raw.QuoteToken),
		BaseToken:   common.HexToAddress(raw.BaseToken),
	}
	return nil
}
