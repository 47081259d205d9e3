package market

import (
	"errors"
	"time"

	"openorders/internal/common"

	"github.com/shopspring/decimal"
)

var (
	ErrMarketMismatch = errors.New("order does not trade the selected market")
	ErrZeroPrice      = errors.New("order has a zero sell price")
)

// ShortDate is the layout used for order expirations.
const ShortDate = "01/02/2006"

// ParsedOrder holds the display quantities of an order within a market.
// Price is in base per quote, Amount is in the quote asset and Value is in
// the base asset.
type ParsedOrder struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
	Value  decimal.Decimal
	IsBid  bool
}

// ParseOrder derives price, amount and value of an order in the market
// base/quote. A bid sells base for quote, an ask sells quote for base.
func ParseOrder(order common.Order, base, quote common.Asset) (ParsedOrder, error) {
	sell := order.SellPrice
	if sell.Base.Amount == 0 || sell.Quote.Amount == 0 {
		return ParsedOrder{}, ErrZeroPrice
	}

	switch {
	case sell.Base.AssetID == base.ID && sell.Quote.AssetID == quote.ID:
		price := toReal(sell.Base.Amount, base).Div(toReal(sell.Quote.Amount, quote))
		value := toReal(order.ForSale, base)
		return ParsedOrder{
			Price:  price,
			Amount: value.Div(price),
			Value:  value,
			IsBid:  true,
		}, nil
	case sell.Base.AssetID == quote.ID && sell.Quote.AssetID == base.ID:
		price := toReal(sell.Quote.Amount, base).Div(toReal(sell.Base.Amount, quote))
		amount := toReal(order.ForSale, quote)
		return ParsedOrder{
			Price:  price,
			Amount: amount,
			Value:  amount.Mul(price),
		}, nil
	}
	return ParsedOrder{}, ErrMarketMismatch
}

// toReal converts an integer amount in the asset's smallest unit.
func toReal(amount int64, asset common.Asset) decimal.Decimal {
	return decimal.New(amount, -asset.Precision)
}

// FormatDate formats an expiration for display.
func FormatDate(t time.Time) string {
	return t.Format(ShortDate)
}
