package domain

import "slices"

// Ledger is the ordered set of payee IDs already committed for payment.
type Ledger struct {
	ids  []string
	seen map[string]struct{}
}

func NewLedger(ids []string) *Ledger {
	l := &Ledger{seen: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		l.Add(id)
	}
	return l
}

func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Add appends id and reports whether it was new.
func (l *Ledger) Add(id string) bool {
	if l.Contains(id) {
		return false
	}
	l.seen[id] = struct{}{}
	l.ids = append(l.ids, id)
	return true
}

func (l *Ledger) IDs() []string {
	return slices.Clone(l.ids)
}

func (l *Ledger) Len() int {
	return len(l.ids)
}
