package storage

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/core/types"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/lending"
)

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	store, err := NewStateStore(NewMemDB())
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	return store
}

func TestReserveRoundTrip(t *testing.T) {
	store := newTestStore(t)

	missing, err := store.GetReserve("usd")
	if err != nil || missing != nil {
		t.Fatalf("unregistered reserve: %v %v", missing, err)
	}

	reserve := &lending.Reserve{
		ID:                   "usd",
		Decimals:             6,
		TokenAddress:         makeAddress(crypto.ModulePrefix, 0x03),
		BaseLTV:              big.NewInt(60),
		LiquidationThreshold: big.NewInt(75),
		TotalBorrowsVariable: big.NewInt(12_345),
	}
	reserve.EnsureDefaults()
	if err := store.PutReserve(reserve); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.GetReserve("usd")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.ID != "usd" || loaded.Decimals != 6 {
		t.Fatalf("loaded %+v", loaded)
	}
	if loaded.TotalBorrowsVariable.Cmp(big.NewInt(12_345)) != 0 {
		t.Fatalf("borrows %v, want 12345", loaded.TotalBorrowsVariable)
	}
	if !loaded.TokenAddress.Equal(reserve.TokenAddress) {
		t.Fatalf("token address %v, want %v", loaded.TokenAddress, reserve.TokenAddress)
	}
	if loaded.LiquidityCumulativeIndex.Cmp(lending.OneUnit()) != 0 {
		t.Fatalf("index not defaulted: %v", loaded.LiquidityCumulativeIndex)
	}
}

func TestReserveIDsKeepRegistrationOrder(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"usd", "gold", "oil"} {
		if err := store.PutReserve(&lending.Reserve{ID: id}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	// A second put must not duplicate the index entry.
	if err := store.PutReserve(&lending.Reserve{ID: "gold"}); err != nil {
		t.Fatalf("re-put: %v", err)
	}

	ids, err := store.ReserveIDs()
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"usd", "gold", "oil"}) {
		t.Fatalf("ids %v", ids)
	}

	if err := store.DeleteReserve("gold"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, _ = store.ReserveIDs()
	if !reflect.DeepEqual(ids, []string{"usd", "oil"}) {
		t.Fatalf("ids after delete %v", ids)
	}
	ok, _ := store.HasReserve("gold")
	if ok {
		t.Fatal("deleted reserve still registered")
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	db := NewMemDB()
	store, err := NewStateStore(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, id := range []string{"usd", "gold"} {
		if err := store.PutReserve(&lending.Reserve{ID: id}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	reopened, err := NewStateStore(db)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	ids, _ := reopened.ReserveIDs()
	if !reflect.DeepEqual(ids, []string{"usd", "gold"}) {
		t.Fatalf("ids after reopen %v", ids)
	}
	reserve, err := reopened.GetReserve("gold")
	if err != nil || reserve == nil {
		t.Fatalf("reserve after reopen: %v %v", reserve, err)
	}
}

func TestUserReserveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	user := makeAddress(crypto.AccountPrefix, 0x10)

	missing, err := store.GetUserReserve("usd", user)
	if err != nil || missing != nil {
		t.Fatalf("untouched position: %v %v", missing, err)
	}

	position := &lending.UserReserve{
		User:                   user,
		ReserveID:              "usd",
		PrincipalBorrowBalance: big.NewInt(5_000),
		RateMode:               lending.RateModeVariable,
		UseAsCollateral:        true,
	}
	position.EnsureDefaults()
	if err := store.PutUserReserve(position); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.GetUserReserve("usd", user)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !loaded.User.Equal(user) || loaded.ReserveID != "usd" {
		t.Fatalf("loaded %+v", loaded)
	}
	if loaded.PrincipalBorrowBalance.Cmp(big.NewInt(5_000)) != 0 || !loaded.UseAsCollateral {
		t.Fatalf("loaded %+v", loaded)
	}

	// Same user against another reserve is a distinct record.
	other, err := store.GetUserReserve("gold", user)
	if err != nil || other != nil {
		t.Fatalf("cross-reserve leak: %v %v", other, err)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	store := newTestStore(t)
	addr := makeAddress(crypto.AccountPrefix, 0x10)

	missing, err := store.GetAccount(addr)
	if err != nil || missing != nil {
		t.Fatalf("absent account: %v %v", missing, err)
	}

	account := types.NewAccount()
	account.Credit("usd", big.NewInt(1_000))
	account.Credit("gold", big.NewInt(7))
	if err := store.PutAccount(addr, account); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.GetAccount(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Balance("usd").Cmp(big.NewInt(1_000)) != 0 || loaded.Balance("gold").Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("balances %v / %v", loaded.Balance("usd"), loaded.Balance("gold"))
	}
}

func TestCompositeKeySegmentsDoNotCollide(t *testing.T) {
	// ("ab", "c") and ("a", "bc") must map to different keys; a naive join
	// would conflate them.
	a := compositeKey(tagUserReserve, []byte("ab"), []byte("c"))
	b := compositeKey(tagUserReserve, []byte("a"), []byte("bc"))
	if string(a) == string(b) {
		t.Fatal("length-prefixed segments collided")
	}
}

func TestOrderedSetReindexesAfterRemove(t *testing.T) {
	set := newOrderedSet([]string{"a", "b", "c", "d"})
	set.remove("b")

	if !reflect.DeepEqual(set.list(), []string{"a", "c", "d"}) {
		t.Fatalf("list %v", set.list())
	}
	// Removal from the middle must leave later positions addressable.
	set.remove("d")
	if !reflect.DeepEqual(set.list(), []string{"a", "c"}) {
		t.Fatalf("list %v", set.list())
	}
	set.add("b")
	if !reflect.DeepEqual(set.list(), []string{"a", "c", "b"}) {
		t.Fatalf("list %v", set.list())
	}
	if !set.has("b") || set.has("d") {
		t.Fatal("membership out of sync")
	}
}
