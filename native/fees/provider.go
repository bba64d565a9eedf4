package fees

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
)

var (
	ErrNotOwner    = errors.New("fee provider: caller is not the owner")
	ErrInvalidRate = errors.New("fee provider: rate outside [0, 1e9]")
)

// oneUnit matches the protocol-wide 1e9 fixed-point scale.
var oneUnit = big.NewInt(1_000_000_000)

// DefaultOriginationFeeRate is 0.25% expressed in 1e9 fixed point.
var DefaultOriginationFeeRate = big.NewInt(2_500_000)

// Provider computes the one-time origination fee charged on every borrow as
// a fixed-point fraction of the borrowed amount.
type Provider struct {
	owner crypto.Address
	rate  *big.Int
}

// NewProvider returns a provider charging the default origination rate.
func NewProvider(owner crypto.Address) *Provider {
	return &Provider{owner: owner, rate: new(big.Int).Set(DefaultOriginationFeeRate)}
}

// CalculateLoanOriginationFee returns amount * rate / 1e9, truncated.
func (p *Provider) CalculateLoanOriginationFee(amount *big.Int) (*big.Int, error) {
	if p == nil || amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	fee := new(big.Int).Mul(amount, p.rate)
	return fee.Quo(fee, oneUnit), nil
}

// Rate returns the current origination fee rate in 1e9 fixed point.
func (p *Provider) Rate() *big.Int {
	if p == nil || p.rate == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p.rate)
}

// UpdateFee replaces the origination fee rate. Owner-gated; rates above 100%
// are rejected.
func (p *Provider) UpdateFee(caller crypto.Address, rate *big.Int) error {
	if !caller.Equal(p.owner) {
		return ErrNotOwner
	}
	if rate == nil || rate.Sign() < 0 || rate.Cmp(oneUnit) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	p.rate = new(big.Int).Set(rate)
	return nil
}
