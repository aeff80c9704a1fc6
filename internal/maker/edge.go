package maker

// Edges holds the raw and fee-net per-contract edges for all four possible
// trade actions on a binary YES/NO market, given a blended fair probability
// and the venue's best bid on each side.
type Edges struct {
	YesBuyRaw  float64
	YesSellRaw float64
	NoBuyRaw   float64
	NoSellRaw  float64

	YesBuyNetTaker  float64
	YesSellNetTaker float64
	NoBuyNetTaker   float64
	NoSellNetTaker  float64

	YesBuyNetMaker  float64
	YesSellNetMaker float64
	NoBuyNetMaker   float64
	NoSellNetMaker  float64

	MarketYesBid, MarketYesAsk float64
	MarketNoBid, MarketNoAsk   float64
}

// ComputeEdges derives the implied asks from the complementary side's bid and
// the raw/net edges for every trade action.
func ComputeEdges(fair float64, yesBidCents, noBidCents int, isIndexNasdaq100, marketChargesMakerFee bool) Edges {
	marketYesBid := float64(yesBidCents) / 100
	marketNoBid := float64(noBidCents) / 100
	marketYesAsk := 1 - marketNoBid
	marketNoAsk := 1 - marketYesBid

	e := Edges{
		MarketYesBid: marketYesBid,
		MarketYesAsk: marketYesAsk,
		MarketNoBid:  marketNoBid,
		MarketNoAsk:  marketNoAsk,
	}

	e.YesBuyRaw = fair - marketYesAsk
	e.YesSellRaw = marketYesBid - fair
	e.NoBuyRaw = (1 - fair) - marketNoAsk
	e.NoSellRaw = marketNoBid - (1 - fair)

	yesBuyTakerFee := Fee(marketYesAsk, 1, true, isIndexNasdaq100, marketChargesMakerFee)
	yesSellTakerFee := Fee(marketYesBid, 1, true, isIndexNasdaq100, marketChargesMakerFee)
	noBuyTakerFee := Fee(marketNoAsk, 1, true, isIndexNasdaq100, marketChargesMakerFee)
	noSellTakerFee := Fee(marketNoBid, 1, true, isIndexNasdaq100, marketChargesMakerFee)

	e.YesBuyNetTaker = e.YesBuyRaw - yesBuyTakerFee
	e.YesSellNetTaker = e.YesSellRaw - yesSellTakerFee
	e.NoBuyNetTaker = e.NoBuyRaw - noBuyTakerFee
	e.NoSellNetTaker = e.NoSellRaw - noSellTakerFee

	yesBuyMakerFee := Fee(marketYesAsk, 1, false, isIndexNasdaq100, marketChargesMakerFee)
	yesSellMakerFee := Fee(marketYesBid, 1, false, isIndexNasdaq100, marketChargesMakerFee)
	noBuyMakerFee := Fee(marketNoAsk, 1, false, isIndexNasdaq100, marketChargesMakerFee)
	noSellMakerFee := Fee(marketNoBid, 1, false, isIndexNasdaq100, marketChargesMakerFee)

	e.YesBuyNetMaker = e.YesBuyRaw - yesBuyMakerFee
	e.YesSellNetMaker = e.YesSellRaw - yesSellMakerFee
	e.NoBuyNetMaker = e.NoBuyRaw - noBuyMakerFee
	e.NoSellNetMaker = e.NoSellRaw - noSellMakerFee

	return e
}

// TradeAction is one candidate trade, identified by side and whether it is a
// buy, together with its net-of-taker-fee edge.
type TradeAction struct {
	Side  string // "yes" or "no"
	IsBuy bool
	Edge  float64
}

// BestTaker identifies the best trade action by net-of-taker-fee edge.
func (e Edges) BestTaker() TradeAction {
	best := TradeAction{Side: "yes", IsBuy: true, Edge: e.YesBuyNetTaker}
	candidates := []TradeAction{
		{Side: "yes", IsBuy: true, Edge: e.YesBuyNetTaker},
		{Side: "yes", IsBuy: false, Edge: e.YesSellNetTaker},
		{Side: "no", IsBuy: true, Edge: e.NoBuyNetTaker},
		{Side: "no", IsBuy: false, Edge: e.NoSellNetTaker},
	}
	for _, c := range candidates {
		if c.Edge > best.Edge {
			best = c
		}
	}
	return best
}
