package metadata

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolPriceFetcher/internal/chain"
	"poolPriceFetcher/internal/model"
)

// FetchTokenInfo loads decimals (required) and symbol (best effort) via ERC20 calls.
func FetchTokenInfo(ctx context.Context, caller chain.Caller, token common.Address, logger *zap.Logger) (model.TokenInfo, error) {
	info := model.TokenInfo{Address: token}
	if caller == nil {
		return info, fmt.Errorf("chain caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, bytes32ABI, err := erc20ABIs()
	if err != nil {
		return info, fmt.Errorf("parse erc20 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s returned nothing", method)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return info, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return info, fmt.Errorf("decimals: %w", err)
	}
	if decimals > model.MaxDecimals {
		return info, fmt.Errorf("decimals %d exceeds %d", decimals, model.MaxDecimals)
	}
	info.Decimals = decimals
	info.DecimalDenominator = model.DecimalDenominator(decimals)

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			info.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			info.Symbol = symbol
		}
	} else {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return info, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("value %s overflows uint8", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
