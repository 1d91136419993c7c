package metadata

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Some tokens (MKR, SAI) return bytes32 from symbol() instead of string.
const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABIOnce   sync.Once
	erc20ABIString abi.ABI
	erc20ABIBytes  abi.ABI
	erc20ABIErr    error
)

func erc20ABIs() (abi.ABI, abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABIString, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIStringJSON))
		if erc20ABIErr != nil {
			return
		}
		erc20ABIBytes, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIBytes32JSON))
	})
	return erc20ABIString, erc20ABIBytes, erc20ABIErr
}
