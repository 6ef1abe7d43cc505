package model

import (
	"time"

	"gorm.io/datatypes"
)

type SettlementStatus string

const (
	SettlementPending    SettlementStatus = "Pending"
	SettlementSubmitting SettlementStatus = "Submitting"
	SettlementSubmitted  SettlementStatus = "Submitted"
	SettlementConfirmed  SettlementStatus = "Confirmed"
	SettlementDisputed   SettlementStatus = "Disputed"
	SettlementTimedOut   SettlementStatus = "TimedOut"
	SettlementFailed     SettlementStatus = "Failed"
)

// Terminal reports whether no further settlement work happens for s.
func (s SettlementStatus) Terminal() bool {
	switch s {
	case SettlementConfirmed, SettlementDisputed, SettlementTimedOut, SettlementFailed:
		return true
	}
	return false
}

// Settlement is the ledger row for one finished match handed to the chain.
type Settlement struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	MatchID      string `gorm:"size:64;uniqueIndex;not null"`
	GameType     string `gorm:"size:64"`
	Stake        string `gorm:"size:64"`
	Player1      string `gorm:"size:64;not null"`
	Player2      string `gorm:"size:64;not null"`
	Player1Score *int
	Player2Score *int
	Winner       *string          `gorm:"size:64"`
	Draw         bool             `gorm:"default:false"`
	Status       SettlementStatus `gorm:"size:16;index;not null;default:Pending"`
	Attempts     int              `gorm:"default:0"`
	LastError    string           `gorm:"size:512"`
	TxHashesJSON datatypes.JSON   // op -> tx hash
	OnChainJSON  datatypes.JSON   // last observed on-chain match state
	EndedAt      time.Time
	SettledAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
