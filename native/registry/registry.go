package registry

import (
	"errors"
	"fmt"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
)

var (
	errNotOwner = errors.New("registry: caller is not the owner")
	errUnset    = errors.New("registry: address not configured")
)

// Role names the collaborator identities the registry resolves.
type Role string

const (
	RoleCore         Role = "core"
	RoleLendingPool  Role = "lendingPool"
	RoleFeeProvider  Role = "feeProvider"
	RoleDataProvider Role = "dataProvider"
	RoleConfigurator Role = "configurator"
)

// Registry wires the protocol components together by address. Every
// cross-component call target is resolved through it rather than held
// directly, so a single owner-gated update can repoint a collaborator.
type Registry struct {
	owner     crypto.Address
	addresses map[Role]crypto.Address
}

// New returns an empty registry administered by owner.
func New(owner crypto.Address) *Registry {
	return &Registry{owner: owner, addresses: make(map[Role]crypto.Address)}
}

// Set records the address for a role. Owner-gated.
func (r *Registry) Set(caller crypto.Address, role Role, addr crypto.Address) error {
	if !caller.Equal(r.owner) {
		return errNotOwner
	}
	r.addresses[role] = addr
	return nil
}

func (r *Registry) resolve(role Role) (crypto.Address, error) {
	addr, ok := r.addresses[role]
	if !ok || addr.IsZero() {
		return crypto.Address{}, fmt.Errorf("%w: %s", errUnset, role)
	}
	return addr, nil
}

// Core resolves the accounting core identity.
func (r *Registry) Core() (crypto.Address, error) {
	return r.resolve(RoleCore)
}

// LendingPool resolves the lending pool identity that alone may mutate the
// shared ledger.
func (r *Registry) LendingPool() (crypto.Address, error) {
	return r.resolve(RoleLendingPool)
}

// FeeProvider resolves the origination fee collaborator.
func (r *Registry) FeeProvider() (crypto.Address, error) {
	return r.resolve(RoleFeeProvider)
}

// DataProvider resolves the read-side data provider.
func (r *Registry) DataProvider() (crypto.Address, error) {
	return r.resolve(RoleDataProvider)
}

// Configurator resolves the configuration authority.
func (r *Registry) Configurator() (crypto.Address, error) {
	return r.resolve(RoleConfigurator)
}
