package protocol

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"poolPriceFetcher/internal/model"
)

type uint256Int = uint256.Int

func one() *uint256.Int { return uint256.NewInt(1) }

func packReserves(reserve0, reserve1 uint64, ts uint32) *uint256.Int {
	word := uint256.NewInt(reserve0)
	r1 := new(uint256.Int).Lsh(uint256.NewInt(reserve1), 112)
	word.Or(word, r1)
	tsWord := new(uint256.Int).Lsh(uint256.NewInt(uint64(ts)), 224)
	return word.Or(word, tsWord)
}

func newUniV2(t *testing.T) Variant {
	t.Helper()
	v, err := NewVariant(KindUniV2, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	return v
}

func TestUniV2DecodeScenarios(t *testing.T) {
	v := newUniV2(t)
	word := packReserves(1000, 2000, 0)
	denoms := [2]*uint256.Int{one(), one()}

	price, err := v.DecodePrice(word, false, denoms, one())
	require.NoError(t, err)
	require.Equal(t, uint64(2), price.Uint64())

	// 1000/2000 truncates to zero.
	price, err = v.DecodePrice(word, true, denoms, one())
	require.NoError(t, err)
	require.True(t, price.IsZero())
}

func TestUniV2IgnoresTimestampBits(t *testing.T) {
	v := newUniV2(t)
	denoms := [2]*uint256.Int{one(), one()}
	precision := model.DecimalDenominator(18)

	withTs, err := v.DecodePrice(packReserves(1000, 2000, 0xffffffff), false, denoms, precision)
	require.NoError(t, err)
	withoutTs, err := v.DecodePrice(packReserves(1000, 2000, 0), false, denoms, precision)
	require.NoError(t, err)
	require.Equal(t, withoutTs, withTs)
}

func TestUniV2DecimalNormalization(t *testing.T) {
	v := newUniV2(t)
	// 2,000,000 USDC (6 decimals) against 1,000 WETH (18 decimals).
	reserve0 := uint256.MustFromDecimal("2000000000000")
	reserve1 := uint256.MustFromDecimal("1000000000000000000000")
	word := new(uint256.Int).Or(reserve0, new(uint256.Int).Lsh(reserve1, 112))
	denoms := [2]*uint256.Int{model.DecimalDenominator(6), model.DecimalDenominator(18)}
	precision := model.DecimalDenominator(18)

	// WETH per USDC = 0.0005
	price, err := v.DecodePrice(word, false, denoms, precision)
	require.NoError(t, err)
	require.Equal(t, "500000000000000", price.Dec())

	// USDC per WETH = 2000
	price, err = v.DecodePrice(word, true, denoms, precision)
	require.NoError(t, err)
	require.Equal(t, "2000000000000000000000", price.Dec())
}

func TestUniV2InversionConsistency(t *testing.T) {
	v := newUniV2(t)
	precision := model.DecimalDenominator(12)
	cases := []struct {
		r0, r1 uint64
		d0, d1 uint8
	}{
		{1000, 2000, 0, 0},
		{123456789, 987654321, 6, 18},
		{7, 3, 18, 6},
		{1 << 50, 3, 8, 8},
	}
	for _, tc := range cases {
		denoms := [2]*uint256.Int{model.DecimalDenominator(tc.d0), model.DecimalDenominator(tc.d1)}
		swappedDenoms := [2]*uint256.Int{denoms[1], denoms[0]}

		inverted, err := v.DecodePrice(packReserves(tc.r0, tc.r1, 0), true, denoms, precision)
		require.NoError(t, err)
		// Swapping the pool sides and decoding directly must give the same number.
		direct, err := v.DecodePrice(packReserves(tc.r1, tc.r0, 0), false, swappedDenoms, precision)
		require.NoError(t, err)
		require.Equal(t, direct.Dec(), inverted.Dec())
	}
}

func TestUniV2ZeroReserve(t *testing.T) {
	v := newUniV2(t)
	denoms := [2]*uint256.Int{one(), one()}
	for _, word := range []*uint256.Int{packReserves(0, 5, 0), packReserves(5, 0, 0), packReserves(0, 0, 12)} {
		for _, invert := range []bool{false, true} {
			price, err := v.DecodePrice(word, invert, denoms, one())
			require.ErrorIs(t, err, model.ErrArithmetic)
			require.Nil(t, price)
		}
	}
}

func TestUniV2Deterministic(t *testing.T) {
	v := newUniV2(t)
	word := packReserves(99991, 12345, 77)
	denoms := [2]*uint256.Int{model.DecimalDenominator(6), model.DecimalDenominator(18)}
	precision := model.DecimalDenominator(18)

	orig := word.Clone()

	first, err := v.DecodePrice(word, false, denoms, precision)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := v.DecodePrice(word, false, denoms, precision)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	require.Equal(t, orig, word)
	require.Equal(t, "1000000", denoms[0].Dec())
}
