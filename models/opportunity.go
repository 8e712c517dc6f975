package models

import "fmt"

// FeeSchedule maps a venue to its trading fee rate, a fraction in [0,1).
// The schedule is built once at startup and read-only afterwards.
type FeeSchedule map[VenueID]float64

// Rate returns the fee rate for a venue. A venue missing from the schedule
// is a configuration error, never a silent zero fee.
func (f FeeSchedule) Rate(v VenueID) (float64, error) {
	rate, ok := f[v]
	if !ok {
		return 0, fmt.Errorf("no fee rate configured for venue %q", v)
	}
	return rate, nil
}

// Opportunity is a fee-adjusted directional trade across two venues,
// computed on a fixed notional of 1 unit of quote currency. It is
// recomputed every scan cycle and never persisted as mutable state.
type Opportunity struct {
	Instrument       Instrument `json:"instrument"`
	BuyVenue         VenueID    `json:"buy_venue"`
	SellVenue        VenueID    `json:"sell_venue"`
	BuyPrice         float64    `json:"buy_price"`
	SellPrice        float64    `json:"sell_price"`
	TotalFees        float64    `json:"total_fees"`
	NetProfit        float64    `json:"net_profit"`
	ProfitPercentage float64    `json:"profit_percentage"`
	MinVolume        float64    `json:"min_volume"`
}

// String renders the opportunity the way the opportunity log records it.
func (o Opportunity) String() string {
	return fmt.Sprintf("%s: Buy at %s for %.2f, Sell at %s for %.2f, Fees: %.4f, Net Profit: %.4f, Profit: %.2f%%, Volume: %.2f",
		o.Instrument, o.BuyVenue, o.BuyPrice, o.SellVenue, o.SellPrice,
		o.TotalFees, o.NetProfit, o.ProfitPercentage, o.MinVolume)
}
