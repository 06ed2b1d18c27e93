package application

import (
	"math/rand/v2"
	"sync"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	"github.com/shopspring/decimal"
)

// RandomSplit draws a uniformly random amount in cents from [0.01, upper].
// An upper bound below one cent yields zero.
type RandomSplit struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSplit(src rand.Source) *RandomSplit {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomSplit{rng: rand.New(src)}
}

func (s *RandomSplit) Draw(upper decimal.Decimal) decimal.Decimal {
	cents := upper.Shift(domain.AmountPlaces).IntPart()
	if cents <= 0 {
		return decimal.Zero
	}
	s.mu.Lock()
	n := s.rng.Int64N(cents)
	s.mu.Unlock()
	return decimal.New(n+1, -domain.AmountPlaces)
}

// FixedSplit pays the same amount to every payee, capped by upper.
type FixedSplit struct {
	Amount decimal.Decimal
}

func (s FixedSplit) Draw(upper decimal.Decimal) decimal.Decimal {
	if s.Amount.GreaterThan(upper) {
		return upper.Round(domain.AmountPlaces)
	}
	return s.Amount.Round(domain.AmountPlaces)
}
