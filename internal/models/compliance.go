package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShipCompliance is the computed balance for one (ship, year).
// CBValue = (TargetIntensity - ActualIntensity) * EnergyInScope.
type ShipCompliance struct {
	ID              int64           `json:"id"`
	ShipID          string          `json:"shipId"`
	Year            int             `json:"year"`
	CBValue         decimal.Decimal `json:"cbGco2eq"`
	TargetIntensity decimal.Decimal `json:"targetIntensity"`
	ActualIntensity decimal.Decimal `json:"actualIntensity"`
	EnergyInScope   decimal.Decimal `json:"energyInScope"`
	ComputedAt      time.Time       `json:"computedAt"`
}

// AdjustedBalance is a compliance record plus the banked surplus still usable
// for its year.
type AdjustedBalance struct {
	ShipCompliance
	BankedAmount decimal.Decimal `json:"bankedAmount"`
	AdjustedCB   decimal.Decimal `json:"adjustedCB"`
}

// BankEntry is one banking deposit. Remaining = Amount - Applied, both non-negative.
type BankEntry struct {
	ID        int64           `json:"id"`
	ShipID    string          `json:"shipId"`
	Year      int             `json:"year"`
	Amount    decimal.Decimal `json:"amountGco2eq"`
	Applied   decimal.Decimal `json:"appliedAmount"`
	Remaining decimal.Decimal `json:"remainingAmount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Allocation records how much of one bank entry an apply call consumed.
type Allocation struct {
	EntryID int64           `json:"entryId"`
	Year    int             `json:"year"`
	Amount  decimal.Decimal `json:"amount"`
}

// Pool groups ships whose balances were redistributed together.
// TotalBefore = sum(cbBefore); Residual is the surplus left after covering
// every deficit, so sum(cbAfter) + Residual = TotalBefore.
type Pool struct {
	ID          int64           `json:"id"`
	Year        int             `json:"year"`
	TotalBefore decimal.Decimal `json:"totalBefore"`
	Residual    decimal.Decimal `json:"residual"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// PoolMember links a ship to its balance before and after a pool allocation.
type PoolMember struct {
	PoolID   int64           `json:"poolId"`
	ShipID   string          `json:"shipId"`
	CBBefore decimal.Decimal `json:"cbBefore"`
	CBAfter  decimal.Decimal `json:"cbAfter"`
}

// MemberBalance is one pool allocation input.
type MemberBalance struct {
	ShipID   string          `json:"shipId"`
	CBBefore decimal.Decimal `json:"cbBefore"`
}
