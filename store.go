package weightd

import (
	"github.com/algorand/go-deadlock"
)

// fallbackModulus bounds the weight derived from an address when no table matches.
const fallbackModulus = 1000000

// weightStore holds the tables and total weight shared by all connections.
// Every access goes through mu.
type weightStore struct {
	mu             deadlock.Mutex
	weightTable    map[string]uint64
	addressWeights map[string]uint64
	totalWeight    uint64
}

func newWeightStore(weightTable, addressWeights map[string]uint64, totalWeight uint64) *weightStore {
	ws := &weightStore{
		weightTable:    make(map[string]uint64, len(weightTable)),
		addressWeights: make(map[string]uint64, len(addressWeights)),
		totalWeight:    totalWeight,
	}
	for k, v := range weightTable {
		ws.weightTable[k] = v
	}
	for k, v := range addressWeights {
		ws.addressWeights[k] = v
	}
	return ws
}

func compositeKey(address, selectionID, balanceRound string) string {
	return address + ":" + selectionID + ":" + balanceRound
}

// fallbackWeight sums the code points of address modulo fallbackModulus.
func fallbackWeight(address string) uint64 {
	var sum uint64
	for _, r := range address {
		sum += uint64(r)
	}
	return sum % fallbackModulus
}

// lookup resolves a weight from the address table, then the composite-key
// table, then the address-derived fallback.
func (ws *weightStore) lookup(address, selectionID, balanceRound string) uint64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if w, ok := ws.addressWeights[address]; ok {
		return w
	}
	if w, ok := ws.weightTable[compositeKey(address, selectionID, balanceRound)]; ok {
		return w
	}
	return fallbackWeight(address)
}

func (ws *weightStore) total() uint64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.totalWeight
}

func (ws *weightStore) setWeight(address, selectionID, balanceRound string, weight uint64) {
	ws.mu.Lock()
	ws.weightTable[compositeKey(address, selectionID, balanceRound)] = weight
	ws.mu.Unlock()
}

func (ws *weightStore) setAddressWeight(address string, weight uint64) {
	ws.mu.Lock()
	ws.addressWeights[address] = weight
	ws.mu.Unlock()
}

func (ws *weightStore) setTotal(totalWeight uint64) {
	ws.mu.Lock()
	ws.totalWeight = totalWeight
	ws.mu.Unlock()
}
