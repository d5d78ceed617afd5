package rowdb

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file that starts a ledger.
type Genesis struct {
	Date         time.Time `json:"date"`
	ChainID      uint16    `json:"chain_id"`      // The chain id represents an unique id for this running instance.
	GasPrice     uint64    `json:"gas_price"`     // Price in wei of one unit of gas.
	GasUnits     uint64    `json:"gas_units"`     // Units of gas charged for every row write.
	RelayBalance uint64    `json:"relay_balance"` // Subsidy in wei that pays for writes on behalf of users.
}

// GasFee returns the fee charged to the relay balance for a single write.
func (g Genesis) GasFee() uint64 {
	return g.GasPrice * g.GasUnits
}

// LoadGenesis opens and consumes the genesis file.
func LoadGenesis(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis %q: %w", path, err)
	}

	if genesis.ChainID == 0 {
		return Genesis{}, fmt.Errorf("genesis %q: chain id must be set", path)
	}

	return genesis, nil
}
