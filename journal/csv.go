// journal/csv.go
package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"predictor/exec"
)

// WriteSettledCSV exports settled trades as CSV, one row per trade, for
// spreadsheet analysis outside the agent.
func WriteSettledCSV(w io.Writer, trades []exec.SettledTrade) error {
	cw := csv.NewWriter(w)

	header := []string{
		"order_id", "ticker", "side", "strategy_id", "simulated",
		"limit_price", "fill_price", "contracts", "size_usd",
		"outcome", "won", "pnl_usd", "fee_usd", "created_at", "settled_at",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			t.Order.ID,
			t.Order.Ticker,
			string(t.Order.Side),
			t.Order.StrategyID,
			strconv.FormatBool(t.Order.Simulated),
			strconv.Itoa(int(t.Order.LimitPrice)),
			strconv.Itoa(int(t.Fill.Price)),
			strconv.Itoa(t.Order.Contracts),
			f(t.Order.SizeUSD),
			string(t.Outcome),
			strconv.FormatBool(t.Won),
			f(t.PnLUSD),
			f(t.FeeUSD),
			t.Order.CreatedAt.Format(time.RFC3339),
			t.SettledAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
