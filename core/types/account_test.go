package types

import (
	"math/big"
	"testing"
)

func TestAccountCreditDebit(t *testing.T) {
	account := NewAccount()
	account.Credit("usd", big.NewInt(1_000))
	account.Credit("usd", big.NewInt(250))

	if got := account.Balance("usd"); got.Cmp(big.NewInt(1_250)) != 0 {
		t.Fatalf("balance = %s, want 1250", got)
	}

	if !account.Debit("usd", big.NewInt(1_250)) {
		t.Fatal("debit within balance should succeed")
	}
	if got := account.Balance("usd"); got.Sign() != 0 {
		t.Fatalf("balance after full debit = %s, want 0", got)
	}
}

func TestAccountDebitShortfall(t *testing.T) {
	account := NewAccount()
	account.Credit("usd", big.NewInt(100))

	if account.Debit("usd", big.NewInt(101)) {
		t.Fatal("debit over balance should fail")
	}
	if got := account.Balance("usd"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed debit mutated balance: %s", got)
	}
	if account.Debit("eur", big.NewInt(1)) {
		t.Fatal("debit of unheld asset should fail")
	}
}

func TestAccountIgnoresNonPositiveAmounts(t *testing.T) {
	account := NewAccount()
	account.Credit("usd", nil)
	account.Credit("usd", big.NewInt(0))
	account.Credit("usd", big.NewInt(-5))
	if got := account.Balance("usd"); got.Sign() != 0 {
		t.Fatalf("non-positive credits changed balance: %s", got)
	}
	if account.Debit("usd", big.NewInt(-5)) {
		t.Fatal("negative debit should fail")
	}
}

func TestAccountBalanceReturnsCopy(t *testing.T) {
	account := NewAccount()
	account.Credit("usd", big.NewInt(500))

	account.Balance("usd").SetInt64(0)
	if got := account.Balance("usd"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("caller mutation leaked into account: %s", got)
	}

	var nilAccount *Account
	if got := nilAccount.Balance("usd"); got.Sign() != 0 {
		t.Fatalf("nil account balance = %s, want 0", got)
	}
}
