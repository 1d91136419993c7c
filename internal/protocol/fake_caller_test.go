package protocol

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	mu        sync.Mutex
	responses map[string][]byte
	calls     []string
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte)}
}

func (f *fakeCaller) set(to common.Address, selector []byte, resp []byte) {
	f.responses[callKey(to, selector)] = resp
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("bad call")
	}
	key := callKey(*msg.To, msg.Data[:4])
	f.calls = append(f.calls, key)
	resp, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func callKey(to common.Address, selector []byte) string {
	return fmt.Sprintf("%s:%x", to.Hex(), selector)
}
