package common

import (
	"fmt"
	"time"
)

// Order is a resting limit order as the ledger reports it. The displayed
// price, amount and value are derived from SellPrice and ForSale, see
// market.ParseOrder.
type Order struct {
	ID         string    // Ledger object id, e.g. 1.7.42
	Seller     string    // Account id of the owner
	ForSale    int64     // Remaining amount of SellPrice.Base still for sale
	SellPrice  Price     // Limit price as a ratio of two asset amounts
	Expiration time.Time // Time after which the ledger drops the order
}

// Price is the ratio Base/Quote. Base is the asset being sold.
type Price struct {
	Base  AssetAmount
	Quote AssetAmount
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:         %s
Seller:     %s
ForSale:    %d
SellPrice:  %s / %s
Expiration: %v`,
		order.ID,
		order.Seller,
		order.ForSale,
		order.SellPrice.Base,
		order.SellPrice.Quote,
		order.Expiration.Format(time.RFC3339), // Formatted for readability
	)
}
