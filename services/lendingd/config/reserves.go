package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/lending"
)

// ReserveParam is one reserve record in the TOML parameter file. Risk
// percentages are whole percents; strategy rates are 1e9 fixed-point values
// written as strings.
type ReserveParam struct {
	ID                   string               `toml:"ID"`
	Decimals             uint8                `toml:"Decimals"`
	TokenAddress         string               `toml:"TokenAddress"`
	BaseLTV              int64                `toml:"BaseLTV"`
	LiquidationThreshold int64                `toml:"LiquidationThreshold"`
	LiquidationBonus     int64                `toml:"LiquidationBonus"`
	Strategy             lending.RateStrategy `toml:"Strategy"`
}

type reserveParamsFile struct {
	Reserves []ReserveParam `toml:"Reserve"`
}

// LoadReserves reads the reserve parameter file and converts each entry into
// the engine's registration form.
func LoadReserves(path string) ([]lending.ReserveConfig, error) {
	var file reserveParamsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode reserve params: %w", err)
	}
	if len(file.Reserves) == 0 {
		return nil, fmt.Errorf("reserve params: no reserves defined")
	}

	configs := make([]lending.ReserveConfig, 0, len(file.Reserves))
	seen := make(map[string]struct{}, len(file.Reserves))
	for i, param := range file.Reserves {
		id := strings.TrimSpace(param.ID)
		if id == "" {
			return nil, fmt.Errorf("reserve params: entry %d missing ID", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("reserve params: duplicate reserve %q", id)
		}
		seen[id] = struct{}{}

		tokenAddr, err := crypto.DecodeAddress(strings.TrimSpace(param.TokenAddress))
		if err != nil {
			return nil, fmt.Errorf("reserve params: %s token address: %w", id, err)
		}

		strategy := param.Strategy.Clone()
		strategy.EnsureDefaults()

		configs = append(configs, lending.ReserveConfig{
			ID:                   id,
			Decimals:             param.Decimals,
			TokenAddress:         tokenAddr,
			BaseLTV:              bigFromInt64(param.BaseLTV),
			LiquidationThreshold: bigFromInt64(param.LiquidationThreshold),
			LiquidationBonus:     bigFromInt64(param.LiquidationBonus),
			Strategy:             strategy,
		})
	}
	return configs, nil
}

func bigFromInt64(v int64) *big.Int {
	return big.NewInt(v)
}
