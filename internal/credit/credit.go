// Package credit holds the wallet rules for provider records: the fixed
// connect price, the mock top-up amount and the debit/credit operations.
package credit

import "github.com/example/yinsee/internal/models"

const (
	ConnectPrice    = 3
	TopUpAmount     = 5
	StartingCredits = 20
)

// Debit takes amount from the wallet only when the balance covers it.
func Debit(p *models.Provider, amount int) bool {
	if p == nil || amount < 0 || p.WalletCredits < amount {
		return false
	}
	p.WalletCredits -= amount
	return true
}

// Credit adds amount to the wallet. Non-positive amounts are ignored.
func Credit(p *models.Provider, amount int) {
	if p == nil || amount <= 0 {
		return
	}
	p.WalletCredits += amount
}
