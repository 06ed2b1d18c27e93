package domain

import "maps"

// Payee is one pending recipient: the ID is the record key (the payee file
// name) and Fields is the destination-key payload sent to the gateway as-is.
type Payee struct {
	ID     string
	Fields map[string]any
}

func NewPayee(id string, fields map[string]any) Payee {
	return Payee{ID: id, Fields: maps.Clone(fields)}
}
