package wallet

import (
	"github.com/walletd/walletd/internal/ledger"
	"github.com/walletd/walletd/internal/money"
)

// Balance is the read model returned by the balance accessor.
type Balance struct {
	WalletID     string
	WalletNumber string
	Amount       money.Amount
	Currency     money.Currency
}

// Formatted renders the balance in major units, e.g. "1500.50 NGN".
func (b Balance) Formatted() string {
	return b.Amount.Format(b.Currency)
}

// Direction tells the owner whether an entry moved money in or out.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Entry is one history row seen from the owner's side.
type Entry struct {
	ledger.Transaction
	Direction Direction
}
