// Package openorders projects the open orders of the current account into
// display rows.
package openorders

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"openorders/internal/common"
	"openorders/internal/market"

	"github.com/rs/zerolog/log"
)

// Placeholder is shown instead of a table body when there are no rows.
const Placeholder = "No open orders"

// Row is one displayed open order.
type Row struct {
	OrderID    string
	Price      string
	Amount     string // In the quote asset
	Value      string // In the base asset
	Expiration string
	IsBid      bool

	// Cancel requests cancellation of this row's order. Nil when the table
	// was rendered without a cancel handler.
	Cancel func()
}

// Table is the rendered open order list of one market.
type Table struct {
	Headers [4]string
	Rows    []Row
}

func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Render builds a row for every order sold by account. A nil account
// renders an empty table. onCancel, if set, is bound to each row.
// Price, Amount and Value are empty for orders that do not trade the
// base/quote market or carry a zero price.
func Render(account *common.Account, orders []common.Order, base, quote common.Asset, onCancel func(orderID string)) Table {
	table := Table{
		Headers: [4]string{"Price", quote.String(), base.String(), "Expiration"},
	}
	if account == nil {
		return table
	}

	for _, order := range orders {
		if order.Seller != account.ID {
			continue
		}
		row := Row{
			OrderID:    order.ID,
			Expiration: market.FormatDate(order.Expiration),
		}
		if parsed, err := market.ParseOrder(order, base, quote); err != nil {
			log.Warn().
				Err(err).
				Str("order", order.ID).
				Msg("unable to parse order")
		} else {
			row.Price = market.FormatPrice(parsed.Price, base)
			row.Amount = market.FormatNumber(parsed.Amount, quote.Precision)
			row.Value = market.FormatNumber(parsed.Value, base.Precision)
			row.IsBid = parsed.IsBid
		}
		if onCancel != nil {
			orderID := order.ID
			row.Cancel = func() { onCancel(orderID) }
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// WriteTo writes the table as aligned plain text.
func (t Table) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ORDER\t%s\n", strings.Join(t.Headers[:], "\t"))
	if t.Empty() {
		fmt.Fprintf(tw, "%s\n", Placeholder)
	}
	for _, row := range t.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.OrderID, row.Price, row.Amount, row.Value, row.Expiration)
	}
	if err := tw.Flush(); err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
