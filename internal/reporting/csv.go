package reporting

import (
	"math"
	"strconv"
	"strings"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/marketdata"
	"hft-multifactor/internal/metrics"
)

// BlotterHeader is the column list of a blotter CSV.
const BlotterHeader = "time_o,action_o,price_o,time_c,action_c,price_c,sign,pnl,fee,net_pnl,return,cum_return"

// valuePlaces is the precision of PnL, fee and return columns.
const valuePlaces = 10

// RenderBlotterCSV renders trades as CSV. The header is written even when
// there are no trades.
func RenderBlotterCSV(trades []domain.Trade) string {
	var sb strings.Builder

	sb.WriteString(BlotterHeader)
	sb.WriteString("\n")

	for _, t := range trades {
		sb.WriteString(strings.Join([]string{
			marketdata.FormatTime(t.OpenTime),
			t.OpenAction,
			exact(t.OpenPrice),
			marketdata.FormatTime(t.CloseTime),
			t.CloseAction,
			exact(t.ClosePrice),
			strconv.Itoa(t.Sign),
			fixed(t.PnL, valuePlaces),
			fixed(t.Fee, valuePlaces),
			fixed(t.NetPnL, valuePlaces),
			fixed(t.Return, valuePlaces),
			fixed(t.CumReturn, valuePlaces),
		}, ","))
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderReturnsCSV renders the daily table with one row per date, one column
// per instrument and a trailing mean column. Cells where an instrument did
// not appear and undefined means are left empty.
func RenderReturnsCSV(table *metrics.DailyTable) string {
	var sb strings.Builder

	sb.WriteString("date")
	for _, inst := range table.Instruments {
		sb.WriteString(",")
		sb.WriteString(inst)
	}
	sb.WriteString(",mean\n")

	for i, date := range table.Dates {
		sb.WriteString(date)
		for _, inst := range table.Instruments {
			sb.WriteString(",")
			if v, ok := table.Value(date, inst); ok {
				sb.WriteString(fixed(v, valuePlaces))
			}
		}
		sb.WriteString(",")
		if m := table.Means[i]; !math.IsNaN(m) {
			sb.WriteString(fixed(m, valuePlaces))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
