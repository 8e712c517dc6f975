package processor

import (
	"arbiscan/logger"
	"arbiscan/models"
)

// Evaluator turns the quotes gathered for one instrument into fee-adjusted
// cross-venue opportunities. All profit figures are computed on a fixed
// notional of 1 unit of quote currency.
type Evaluator struct {
	fees models.FeeSchedule
	log  *logger.Log
}

// NewEvaluator builds an evaluator over the given fee schedule.
func NewEvaluator(fees models.FeeSchedule) *Evaluator {
	return &Evaluator{
		fees: fees,
		log:  logger.GetLogger(),
	}
}

// Evaluate inspects the quotes for a single instrument. Degenerate quotes
// (zero bid, ask or volume) are dropped before any pairing. The first return
// is the raw best-bid/best-ask spread across venues, nil when no positive
// spread exists. Every ordered venue pair whose sell-side bid exceeds the
// buy-side ask yields an opportunity, including ones whose net profit after
// fees is zero or negative. An unknown venue in the fee schedule aborts the
// instrument with an error.
func (e *Evaluator) Evaluate(in models.Instrument, quotes []models.Quote) (*float64, []models.Opportunity, error) {
	valid := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.IsDegenerate() {
			e.log.WithComponent("evaluator").WithFields(logger.Fields{
				"venue":      q.Venue,
				"instrument": in.Symbol(),
			}).Debug("skipping degenerate quote")
			continue
		}
		valid = append(valid, q)
	}

	rawSpread := rawSpread(valid)

	var opportunities []models.Opportunity
	for i, buy := range valid {
		for j, sell := range valid {
			if i == j {
				continue
			}
			if sell.Bid <= buy.Ask || buy.Ask <= 0 {
				continue
			}

			buyFee, err := e.fees.Rate(buy.Venue)
			if err != nil {
				return nil, nil, err
			}
			sellFee, err := e.fees.Rate(sell.Venue)
			if err != nil {
				return nil, nil, err
			}

			// Spend 1 quote unit buying, then sell what was acquired.
			acquired := (1 - buyFee) / buy.Ask
			proceeds := acquired * sell.Bid * (1 - sellFee)
			netProfit := proceeds - 1

			minVolume := buy.Volume
			if sell.Volume < minVolume {
				minVolume = sell.Volume
			}

			opportunities = append(opportunities, models.Opportunity{
				Instrument:       in,
				BuyVenue:         buy.Venue,
				SellVenue:        sell.Venue,
				BuyPrice:         buy.Ask,
				SellPrice:        sell.Bid,
				TotalFees:        buy.Ask*buyFee + sell.Bid*sellFee,
				NetProfit:        netProfit,
				ProfitPercentage: netProfit * 100,
				MinVolume:        minVolume,
			})
		}
	}

	return rawSpread, opportunities, nil
}

// rawSpread reports the gap between the highest bid and the lowest ask
// across venues, nil unless strictly positive.
func rawSpread(quotes []models.Quote) *float64 {
	if len(quotes) == 0 {
		return nil
	}

	maxBid := quotes[0].Bid
	minAsk := quotes[0].Ask
	for _, q := range quotes[1:] {
		if q.Bid > maxBid {
			maxBid = q.Bid
		}
		if q.Ask < minAsk {
			minAsk = q.Ask
		}
	}

	spread := maxBid - minAsk
	if spread <= 0 {
		return nil
	}
	return &spread
}
