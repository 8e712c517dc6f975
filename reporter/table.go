package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	appconfig "arbiscan/config"
	"arbiscan/models"
)

// Table renders each snapshot as a per-instrument console grid, one row per
// instrument with its cross-venue extremes and the best route found.
type Table struct {
	out      io.Writer
	colorize bool
}

// NewTable builds the console sink. Color is stripped when disabled in
// configuration.
func NewTable(cfg appconfig.TableConfig) *Table {
	return &Table{out: os.Stdout, colorize: cfg.Color}
}

func (t *Table) Report(s *models.Snapshot) {
	fmt.Fprintf(t.out, "\nScan %s  (%d instruments, %v)\n", s.StartedAt.Format("2006-01-02 15:04:05"), len(s.Instruments), s.Duration.Round(time.Millisecond))

	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"Instrument", "Venues", "Best Bid", "Best Ask", "Raw Spread", "Route", "Profit %", "Min Volume"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	for _, in := range s.Instruments {
		quotes := s.Quotes[in]

		bestBid, bestAsk := "-", "-"
		var maxBid, minAsk float64
		for _, q := range quotes {
			if q.IsDegenerate() {
				continue
			}
			if q.Bid > maxBid {
				maxBid = q.Bid
				bestBid = fmt.Sprintf("%.4f (%s)", q.Bid, q.Venue)
			}
			if minAsk == 0 || q.Ask < minAsk {
				minAsk = q.Ask
				bestAsk = fmt.Sprintf("%.4f (%s)", q.Ask, q.Venue)
			}
		}

		spread := "-"
		if raw := s.RawSpreads[in]; raw != nil {
			spread = fmt.Sprintf("%.4f", *raw)
		}

		route, profit, volume := "-", "-", "-"
		if best := s.BestOpportunity(in); best != nil {
			route = fmt.Sprintf("%s -> %s", best.BuyVenue, best.SellVenue)
			profit = t.paintProfit(best.ProfitPercentage)
			volume = fmt.Sprintf("%.2f", best.MinVolume)
		}

		table.Append([]string{in.Symbol(), fmt.Sprintf("%d", len(quotes)), bestBid, bestAsk, spread, route, profit, volume})
	}

	table.Render()

	if len(s.Opportunities) > 0 {
		top := s.Opportunities[0]
		line := fmt.Sprintf("Top: %s", top)
		if t.colorize && top.NetProfit > 0 {
			line = color.New(color.FgGreen, color.Bold).Sprint(line)
		}
		fmt.Fprintln(t.out, line)
	}
}

// paintProfit colors positive percentages green and negative red; color is
// a no-op when disabled.
func (t *Table) paintProfit(pct float64) string {
	text := fmt.Sprintf("%.4f%%", pct)
	if !t.colorize {
		return text
	}
	if pct > 0 {
		return color.GreenString(text)
	}
	return color.RedString(text)
}
