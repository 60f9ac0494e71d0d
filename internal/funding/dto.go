package funding

import (
	"encoding/json"

	"github.com/walletd/walletd/internal/money"
)

// DepositRequest is the body of a deposit initiation.
type DepositRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DepositResponse is returned after a deposit is initiated.
type DepositResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	Status           string `json:"status"`
}

// DepositStatusResponse describes a stored deposit.
type DepositStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// WebhookEvent is the gateway's notification envelope.
type WebhookEvent struct {
	Event string     `json:"event"`
	Data  chargeData `json:"data"`
}

// chargeData is shared by webhook notifications and verify responses.
type chargeData struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"`
	PaidAt    string          `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
	Customer  struct {
		ID           json.Number `json:"id"`
		Email        string      `json:"email"`
		CustomerCode string      `json:"customer_code"`
	} `json:"customer"`
}

// userID extracts metadata.user_id, which deposit initiation attaches. The
// gateway sends an empty string instead of an object when no metadata exists.
func (d chargeData) userID() string {
	var meta struct {
		UserID string `json:"user_id"`
	}
	if len(d.Metadata) == 0 || json.Unmarshal(d.Metadata, &meta) != nil {
		return ""
	}
	return meta.UserID
}

func (d chargeData) verification() Verification {
	currency, _ := money.ParseCurrency(d.Currency, "")
	return Verification{
		Reference: d.Reference,
		Status:    d.Status,
		Amount:    money.Amount(d.Amount),
		Currency:  currency,
		Channel:   d.Channel,
		PaidAt:    d.PaidAt,
		Customer: Customer{
			ID:    d.Customer.ID.String(),
			Email: d.Customer.Email,
			Code:  d.Customer.CustomerCode,
		},
		UserID: d.userID(),
	}
}
