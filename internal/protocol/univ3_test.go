package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"poolPriceFetcher/internal/model"
)

func newUniV3(t *testing.T) Variant {
	t.Helper()
	v, err := NewVariant(KindUniV3, common.HexToAddress("0x2222222222222222222222222222222222222222"))
	require.NoError(t, err)
	return v
}

// referencePrice computes the exact rational price the fixed-point decode approximates.
func referencePrice(sqrtPriceX96 *uint256.Int, invert bool, decimals [2]uint8, precision uint8) *big.Rat {
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	ratio := new(big.Rat).SetFrac(sqrtPriceX96.ToBig(), q96)
	ratio.Mul(ratio, ratio)
	ratio.Mul(ratio, new(big.Rat).SetFrac(model.DecimalDenominator(decimals[0]).ToBig(), model.DecimalDenominator(decimals[1]).ToBig()))
	p := new(big.Rat).SetInt(model.DecimalDenominator(precision).ToBig())
	if invert {
		return p.Quo(p, ratio)
	}
	return p.Mul(p, ratio)
}

func relativeError(got *uint256.Int, want *big.Rat) float64 {
	diff := new(big.Rat).Sub(new(big.Rat).SetInt(got.ToBig()), want)
	diff.Abs(diff)
	diff.Quo(diff, want)
	f, _ := diff.Float64()
	return f
}

func TestUniV3UnitPriceEqualsPrecision(t *testing.T) {
	v := newUniV3(t)
	sqrtOne := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	for _, precision := range []uint8{0, 6, 18} {
		for _, decimals := range []uint8{0, 6, 18} {
			denoms := [2]*uint256.Int{model.DecimalDenominator(decimals), model.DecimalDenominator(decimals)}
			factor := model.DecimalDenominator(precision)
			for _, invert := range []bool{false, true} {
				price, err := v.DecodePrice(sqrtOne, invert, denoms, factor)
				require.NoError(t, err)
				require.Equal(t, factor.Dec(), price.Dec(), "precision=%d decimals=%d invert=%v", precision, decimals, invert)
			}
		}
	}
}

func TestUniV3IgnoresBitsAbove160(t *testing.T) {
	v := newUniV3(t)
	sqrtOne := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// slot0 packs tick, observation indexes, fee protocol and unlocked above sqrtPriceX96.
	packed := new(uint256.Int).Or(sqrtOne, new(uint256.Int).Lsh(uint256.NewInt(0xabcdef), 160))
	packed.Or(packed, new(uint256.Int).Lsh(uint256.NewInt(1), 240))

	denoms := [2]*uint256.Int{one(), one()}
	factor := model.DecimalDenominator(18)
	a, err := v.DecodePrice(sqrtOne, false, denoms, factor)
	require.NoError(t, err)
	b, err := v.DecodePrice(packed, false, denoms, factor)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestUniV3AgainstRationalReference(t *testing.T) {
	v := newUniV3(t)
	cases := []struct {
		name        string
		sqrt        string
		decimals    [2]uint8
		wantDirect  string
		wantInverse string
		tolerance   float64
	}{
		{
			name:        "price four",
			sqrt:        "158456325028528675187087900672",
			decimals:    [2]uint8{18, 18},
			wantDirect:  "4000000000000000000",
			wantInverse: "250000000000000000",
			tolerance:   0,
		},
		{
			name:        "usdc weth",
			sqrt:        "1771595571142957102961017161607260",
			decimals:    [2]uint8{6, 18},
			wantDirect:  "499999999999999",
			wantInverse: "2000000000000000000016",
			tolerance:   1e-12,
		},
		{
			name:        "wbtc weth three sevenths",
			sqrt:        "33954926791827573254375978715",
			decimals:    [2]uint8{8, 18},
			wantDirect:  "18367346",
			wantInverse: "54444444444444589629629629629",
			tolerance:   1e-7,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sqrt := uint256.MustFromDecimal(tc.sqrt)
			denoms := [2]*uint256.Int{model.DecimalDenominator(tc.decimals[0]), model.DecimalDenominator(tc.decimals[1])}
			factor := model.DecimalDenominator(18)

			direct, err := v.DecodePrice(sqrt, false, denoms, factor)
			require.NoError(t, err)
			require.Equal(t, tc.wantDirect, direct.Dec())
			require.LessOrEqual(t, relativeError(direct, referencePrice(sqrt, false, tc.decimals, 18)), tc.tolerance)

			inverse, err := v.DecodePrice(sqrt, true, denoms, factor)
			require.NoError(t, err)
			require.Equal(t, tc.wantInverse, inverse.Dec())
			require.LessOrEqual(t, relativeError(inverse, referencePrice(sqrt, true, tc.decimals, 18)), tc.tolerance)
		})
	}
}

func TestUniV3LowSqrtPriceLosesPrecision(t *testing.T) {
	v := newUniV3(t)
	// MIN_SQRT_RATIO scaled up; the 1e15 rescale leaves only a few significant digits.
	sqrt := uint256.MustFromDecimal("4295128739000000")
	denoms := [2]*uint256.Int{model.DecimalDenominator(18), model.DecimalDenominator(18)}
	factor := model.DecimalDenominator(18)

	direct, err := v.DecodePrice(sqrt, false, denoms, factor)
	require.NoError(t, err)
	require.True(t, direct.IsZero())

	inverse, err := v.DecodePrice(sqrt, true, denoms, factor)
	require.NoError(t, err)
	require.Equal(t, "342935528120713305898491083676268861454046639", inverse.Dec())
	require.Less(t, relativeError(inverse, referencePrice(sqrt, true, [2]uint8{18, 18}, 18)), 0.01)
}

func TestUniV3ZeroPrice(t *testing.T) {
	v := newUniV3(t)
	denoms := [2]*uint256.Int{one(), one()}
	factor := model.DecimalDenominator(18)

	for _, word := range []*uint256.Int{new(uint256.Int), uint256.NewInt(79228162514264)} {
		price, err := v.DecodePrice(word, true, denoms, factor)
		require.ErrorIs(t, err, model.ErrArithmetic)
		require.Nil(t, price)

		price, err = v.DecodePrice(word, false, denoms, factor)
		require.NoError(t, err)
		require.True(t, price.IsZero())
	}
}

func TestUniV3Deterministic(t *testing.T) {
	v := newUniV3(t)
	sqrt := uint256.MustFromDecimal("1771595571142957102961017161607260")
	denoms := [2]*uint256.Int{model.DecimalDenominator(6), model.DecimalDenominator(18)}
	factor := model.DecimalDenominator(18)

	for _, invert := range []bool{false, true} {
		first, err := v.DecodePrice(sqrt, invert, denoms, factor)
		require.NoError(t, err)
		second, err := v.DecodePrice(sqrt, invert, denoms, factor)
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}
