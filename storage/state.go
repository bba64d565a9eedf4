package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/core/types"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/lending"
)

// Key tags. Composite keys are a tag byte followed by length-prefixed
// segments, so identifiers may contain any byte without colliding.
const (
	tagReserve      byte = 0x01
	tagUserReserve  byte = 0x02
	tagAccount      byte = 0x03
	tagReserveIndex byte = 0x10
)

func compositeKey(tag byte, segments ...[]byte) []byte {
	key := []byte{tag}
	var buf [binary.MaxVarintLen64]byte
	for _, segment := range segments {
		n := binary.PutUvarint(buf[:], uint64(len(segment)))
		key = append(key, buf[:n]...)
		key = append(key, segment...)
	}
	return key
}

// orderedSet keeps the registered reserve identifiers in registration order
// with O(1) membership checks. It replaces any delimiter-joined encoding: the
// arena slice carries the order, the index map the lookups.
type orderedSet struct {
	arena []string
	index map[string]int
}

func newOrderedSet(items []string) *orderedSet {
	s := &orderedSet{index: make(map[string]int, len(items))}
	for _, item := range items {
		s.add(item)
	}
	return s
}

func (s *orderedSet) add(item string) {
	if _, ok := s.index[item]; ok {
		return
	}
	s.index[item] = len(s.arena)
	s.arena = append(s.arena, item)
}

func (s *orderedSet) remove(item string) {
	pos, ok := s.index[item]
	if !ok {
		return
	}
	s.arena = append(s.arena[:pos], s.arena[pos+1:]...)
	delete(s.index, item)
	for i := pos; i < len(s.arena); i++ {
		s.index[s.arena[i]] = i
	}
}

func (s *orderedSet) has(item string) bool {
	_, ok := s.index[item]
	return ok
}

func (s *orderedSet) list() []string {
	out := make([]string, len(s.arena))
	copy(out, s.arena)
	return out
}

// StateStore persists the lending engine's typed records in a key-value
// database. It implements lending.State.
type StateStore struct {
	db  Database
	ids *orderedSet
}

// NewStateStore opens the typed state layer over a database, loading the
// reserve index into memory.
func NewStateStore(db Database) (*StateStore, error) {
	s := &StateStore{db: db}
	raw, err := db.Get(compositeKey(tagReserveIndex))
	switch {
	case errors.Is(err, ErrNotFound):
		s.ids = newOrderedSet(nil)
	case err != nil:
		return nil, fmt.Errorf("load reserve index: %w", err)
	default:
		var items []string
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode reserve index: %w", err)
		}
		s.ids = newOrderedSet(items)
	}
	return s, nil
}

func (s *StateStore) persistIndex() error {
	raw, err := json.Marshal(s.ids.list())
	if err != nil {
		return err
	}
	return s.db.Put(compositeKey(tagReserveIndex), raw)
}

func (s *StateStore) getJSON(key []byte, out any) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateStore) putJSON(key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, raw)
}

// GetReserve returns the reserve record or nil when unregistered.
func (s *StateStore) GetReserve(id string) (*lending.Reserve, error) {
	if !s.ids.has(id) {
		return nil, nil
	}
	reserve := &lending.Reserve{}
	ok, err := s.getJSON(compositeKey(tagReserve, []byte(id)), reserve)
	if err != nil || !ok {
		return nil, err
	}
	reserve.EnsureDefaults()
	return reserve, nil
}

// PutReserve stores the reserve and registers its id in the ordered index.
func (s *StateStore) PutReserve(reserve *lending.Reserve) error {
	if reserve == nil || reserve.ID == "" {
		return fmt.Errorf("storage: reserve record missing id")
	}
	if err := s.putJSON(compositeKey(tagReserve, []byte(reserve.ID)), reserve); err != nil {
		return err
	}
	if !s.ids.has(reserve.ID) {
		s.ids.add(reserve.ID)
		return s.persistIndex()
	}
	return nil
}

// DeleteReserve removes the reserve record and its index entry.
func (s *StateStore) DeleteReserve(id string) error {
	if err := s.db.Delete(compositeKey(tagReserve, []byte(id))); err != nil {
		return err
	}
	if s.ids.has(id) {
		s.ids.remove(id)
		return s.persistIndex()
	}
	return nil
}

// HasReserve reports reserve registration without loading the record.
func (s *StateStore) HasReserve(id string) (bool, error) {
	return s.ids.has(id), nil
}

// ReserveIDs lists registered reserves in registration order.
func (s *StateStore) ReserveIDs() ([]string, error) {
	return s.ids.list(), nil
}

// GetUserReserve returns the per-user position or nil when the user never
// touched the reserve.
func (s *StateStore) GetUserReserve(reserveID string, user crypto.Address) (*lending.UserReserve, error) {
	position := &lending.UserReserve{}
	ok, err := s.getJSON(compositeKey(tagUserReserve, []byte(reserveID), user.Bytes()), position)
	if err != nil || !ok {
		return nil, err
	}
	position.EnsureDefaults()
	return position, nil
}

// PutUserReserve stores the per-user position.
func (s *StateStore) PutUserReserve(position *lending.UserReserve) error {
	if position == nil || position.ReserveID == "" {
		return fmt.Errorf("storage: position record missing reserve id")
	}
	return s.putJSON(compositeKey(tagUserReserve, []byte(position.ReserveID), position.User.Bytes()), position)
}

// GetAccount returns the balance book for an address, nil when absent.
func (s *StateStore) GetAccount(addr crypto.Address) (*types.Account, error) {
	account := &types.Account{}
	ok, err := s.getJSON(compositeKey(tagAccount, addr.Bytes()), account)
	if err != nil || !ok {
		return nil, err
	}
	account.EnsureDefaults()
	return account, nil
}

// PutAccount stores the balance book for an address.
func (s *StateStore) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("storage: nil account record")
	}
	return s.putJSON(compositeKey(tagAccount, addr.Bytes()), account)
}
