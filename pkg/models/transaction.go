package models

import (
	"errors"
	"time"
)

// TransactionRecord is a single USD-enriched transfer supplied by the
// blockchain-data collaborator. Records are immutable once handed to the
// engine; uniqueness is by Hash.
type TransactionRecord struct {
	Hash                string    `json:"hash"`
	FromAddress         string    `json:"fromAddress"`
	ToAddress           string    `json:"toAddress"`
	Timestamp           time.Time `json:"timestamp"`
	USDValue            *float64  `json:"usdValue"` // nil when price enrichment failed upstream
	TokenSymbol         string    `json:"tokenSymbol"`
	TokenAddress        string    `json:"tokenAddress,omitempty"`
	TokenAmount         float64   `json:"tokenAmount,omitempty"` // native token units, USD fallback for discovery
	ContractInteraction bool      `json:"contractInteraction"`
}

// USD returns the enriched value, or 0 when enrichment is absent.
func (t TransactionRecord) USD() float64 {
	if t.USDValue == nil {
		return 0
	}
	return *t.USDValue
}

// EntityLabel is the wallet-labeling collaborator's answer for one address.
// Unlabeled addresses come back with EntityType "unknown" and zero confidence.
type EntityLabel struct {
	Address    string   `json:"address"`
	EntityType string   `json:"entityType"` // "otc_desk"/"exchange"/"mixer"/"unknown"/...
	EntityName string   `json:"entityName,omitempty"`
	Confidence float64  `json:"confidence"` // 0.0 - 1.0
	Labels     []string `json:"labels,omitempty"`
}

// DeskInfo describes a known OTC desk from the registry collaborator.
type DeskInfo struct {
	Address    string  `json:"address"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0.0 - 1.0
	Chain      string  `json:"chain,omitempty"`
}

// ErrInvalidInput rejects malformed addresses/hashes and non-positive limits
// before any analysis runs.
var ErrInvalidInput = errors.New("invalid input")
