package protocol

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"poolPriceFetcher/internal/model"
)

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant(" UniV2 ", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	require.Equal(t, KindUniV2, v.Kind())
	require.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), v.Pool())
	require.Equal(t, "UniV2: 0x1111111111111111111111111111111111111111", v.Name())

	v, err = ParseVariant("univ3", "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	require.Equal(t, KindUniV3, v.Kind())
}

func TestParseVariantRejectsBadInput(t *testing.T) {
	_, err := ParseVariant("curve", "0x1111111111111111111111111111111111111111")
	require.ErrorIs(t, err, model.ErrConfiguration)

	_, err = ParseVariant("univ2", "not-an-address")
	require.ErrorIs(t, err, model.ErrConfiguration)

	_, err = ParseVariant("univ2", "0x0000000000000000000000000000000000000000")
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestStorageLocation(t *testing.T) {
	pool := common.HexToAddress("0x3333333333333333333333333333333333333333")

	v2, err := NewVariant(KindUniV2, pool)
	require.NoError(t, err)
	contract, slot := v2.StorageLocation()
	require.Equal(t, pool, contract)
	require.Equal(t, common.HexToHash("0x08"), slot)

	v3, err := NewVariant(KindUniV3, pool)
	require.NoError(t, err)
	contract, slot = v3.StorageLocation()
	require.Equal(t, pool, contract)
	require.Equal(t, common.Hash{}, slot)
}

func TestZeroVariantFailsClosed(t *testing.T) {
	var v Variant
	_, err := v.DecodePrice(one(), false, [2]*uint256Int{one(), one()}, one())
	require.ErrorIs(t, err, model.ErrConfiguration)

	_, err = v.IdentifyTokens(context.Background(), newFakeCaller())
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestIdentifyTokensOrder(t *testing.T) {
	parsed, err := PoolTokensABI()
	require.NoError(t, err)

	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	caller := newFakeCaller()
	resp0, err := parsed.Methods["token0"].Outputs.Pack(token0)
	require.NoError(t, err)
	resp1, err := parsed.Methods["token1"].Outputs.Pack(token1)
	require.NoError(t, err)
	caller.set(pool, parsed.Methods["token0"].ID, resp0)
	caller.set(pool, parsed.Methods["token1"].ID, resp1)

	for _, kind := range Kinds() {
		v, err := NewVariant(kind, pool)
		require.NoError(t, err)
		tokens, err := v.IdentifyTokens(context.Background(), caller)
		require.NoError(t, err)
		require.Equal(t, [2]common.Address{token0, token1}, tokens)
	}
}

func TestIdentifyTokensPropagatesFailure(t *testing.T) {
	pool := common.HexToAddress("0x5555555555555555555555555555555555555555")
	v, err := NewVariant(KindUniV2, pool)
	require.NoError(t, err)

	_, err = v.IdentifyTokens(context.Background(), newFakeCaller())
	require.Error(t, err)
	require.Contains(t, err.Error(), "token0")
}
