package protocol

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"poolPriceFetcher/internal/chain"
)

const poolTokensABIJSON = `[
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

var (
	poolTokensABI     abi.ABI
	poolTokensABIOnce sync.Once
	poolTokensABIErr  error
)

// PoolTokensABI returns the parsed token0/token1 ABI shared by both layouts.
func PoolTokensABI() (abi.ABI, error) {
	poolTokensABIOnce.Do(func() {
		poolTokensABI, poolTokensABIErr = abi.JSON(strings.NewReader(poolTokensABIJSON))
	})
	return poolTokensABI, poolTokensABIErr
}

func poolTokens(ctx context.Context, caller chain.Caller, pool common.Address) ([2]common.Address, error) {
	var out [2]common.Address
	if caller == nil {
		return out, fmt.Errorf("chain caller is nil")
	}
	parsed, err := PoolTokensABI()
	if err != nil {
		return out, fmt.Errorf("parse pool abi: %w", err)
	}

	for i, method := range []string{"token0", "token1"} {
		data, err := parsed.Pack(method)
		if err != nil {
			return out, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
		if err != nil {
			return out, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return out, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) != 1 {
			return out, fmt.Errorf("%s return size %d", method, len(values))
		}
		addr, ok := values[0].(common.Address)
		if !ok {
			return out, fmt.Errorf("%s unexpected type %T", method, values[0])
		}
		out[i] = addr
	}
	return out, nil
}
