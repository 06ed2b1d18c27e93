package domain

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

const AmountPlaces = 2

type Transfer struct {
	PayeeID string
	Amount  decimal.Decimal
	Fields  map[string]any
}

func NewTransfer(p Payee, amount decimal.Decimal) Transfer {
	return Transfer{
		PayeeID: p.ID,
		Amount:  amount.Round(AmountPlaces),
		Fields:  maps.Clone(p.Fields),
	}
}

// Body merges the drawn amount into the payee payload. The amount always
// wins over a "value" key present in the payee file.
func (t Transfer) Body() map[string]any {
	body := make(map[string]any, len(t.Fields)+1)
	maps.Copy(body, t.Fields)
	body["value"] = json.Number(t.Amount.StringFixed(AmountPlaces))
	return body
}

type Receipt struct {
	TransactionID string `json:"id"`
	Status        string `json:"status"`
}

type Disbursement struct {
	RunID         string
	PayeeID       string
	Amount        decimal.Decimal
	TransactionID string
	Status        string
	CreatedAt     time.Time
}
