package metadata

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"poolPriceFetcher/internal/protocol"
)

type fakeChain struct {
	mu        sync.Mutex
	responses map[string][]byte
	counts    map[string]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{responses: make(map[string][]byte), counts: make(map[string]int)}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("bad call")
	}
	key := fmt.Sprintf("%s:%x", msg.To.Hex(), msg.Data[:4])
	f.counts[key]++
	resp, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func (f *fakeChain) count(to common.Address, method abi.Method) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[fmt.Sprintf("%s:%x", to.Hex(), method.ID)]
}

func (f *fakeChain) respond(t *testing.T, to common.Address, method abi.Method, values ...interface{}) {
	t.Helper()
	resp, err := method.Outputs.Pack(values...)
	require.NoError(t, err)
	f.responses[fmt.Sprintf("%s:%x", to.Hex(), method.ID)] = resp
}

func (f *fakeChain) addPool(t *testing.T, pool, token0, token1 common.Address) {
	t.Helper()
	parsed, err := protocol.PoolTokensABI()
	require.NoError(t, err)
	f.respond(t, pool, parsed.Methods["token0"], token0)
	f.respond(t, pool, parsed.Methods["token1"], token1)
}

func (f *fakeChain) addToken(t *testing.T, token common.Address, symbol string, decimals uint8) {
	t.Helper()
	stringABI, _, err := erc20ABIs()
	require.NoError(t, err)
	f.respond(t, token, stringABI.Methods["decimals"], decimals)
	f.respond(t, token, stringABI.Methods["symbol"], symbol)
}
