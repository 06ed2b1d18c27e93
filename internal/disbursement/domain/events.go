package domain

import "time"

const (
	EventPayeeCommitted = "PayeeCommitted"
	EventTransferSent   = "TransferSent"
)

type PayeeCommitted struct {
	Ledger      string    `json:"ledger"`
	PayeeID     string    `json:"payee_id"`
	CommittedAt time.Time `json:"committed_at"`
}

type TransferSent struct {
	RunID         string    `json:"run_id"`
	PayeeID       string    `json:"payee_id"`
	Amount        string    `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewTransferSent(d Disbursement) TransferSent {
	return TransferSent{
		RunID:         d.RunID,
		PayeeID:       d.PayeeID,
		Amount:        d.Amount.StringFixed(AmountPlaces),
		TransactionID: d.TransactionID,
		Status:        d.Status,
		CreatedAt:     d.CreatedAt,
	}
}
