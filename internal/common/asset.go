package common

import "fmt"

// Asset describes a tradable instrument.
type Asset struct {
	ID        string // Ledger object id, e.g. 1.3.0
	Symbol    string
	Precision int32 // Number of decimal places of the smallest unit
}

func (a Asset) String() string {
	if a.Symbol == "" {
		return a.ID
	}
	return a.Symbol
}

// AssetAmount is an integer amount expressed in the smallest unit of an asset.
type AssetAmount struct {
	Amount  int64
	AssetID string
}

func (a AssetAmount) String() string {
	return fmt.Sprintf("%d %s", a.Amount, a.AssetID)
}

// Account is a ledger account.
type Account struct {
	ID   string // Ledger object id, e.g. 1.2.17
	Name string
}
