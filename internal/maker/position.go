package maker

import (
	"github.com/shopspring/decimal"

	"btc-option-mm/pkg/types"
)

// ApplyFill updates pos in place from a single fill. signedContracts is
// +count for Buy-YES/Sell-NO, -count for Sell-YES/Buy-NO.
func ApplyFill(pos *types.PositionState, fill types.FillUpdate) {
	signed := signedContracts(fill)
	price := decimal.New(int64(fill.PriceCents), -2)

	sameSign := pos.YesPosition == 0 || (pos.YesPosition > 0) == (signed > 0)

	if sameSign {
		combined := pos.YesPosition + signed
		if combined != 0 {
			totalCost := pos.AvgEntryPrice.Mul(decimal.NewFromInt(int64(abs(pos.YesPosition)))).
				Add(price.Mul(decimal.NewFromInt(int64(abs(signed)))))
			pos.AvgEntryPrice = totalCost.Div(decimal.NewFromInt(int64(abs(combined))))
		}
		pos.CostBasis = pos.CostBasis.Add(decimal.NewFromInt(int64(signed)).Mul(price))
	} else {
		closing := abs(signed)
		if abs(pos.YesPosition) < closing {
			closing = abs(pos.YesPosition)
		}
		direction := decimal.NewFromInt(1)
		if pos.YesPosition < 0 {
			direction = decimal.NewFromInt(-1)
		}
		closingDec := decimal.NewFromInt(int64(closing))

		pos.RealizedPnL = pos.RealizedPnL.Add(direction.Mul(closingDec).Mul(price.Sub(pos.AvgEntryPrice)))
		pos.CostBasis = pos.CostBasis.Sub(direction.Mul(closingDec).Mul(pos.AvgEntryPrice))

		remaining := signed + pos.YesPosition
		switch {
		case abs(signed) > abs(pos.YesPosition):
			// Flipped through flat: the remainder opens a new position at this fill's price.
			pos.AvgEntryPrice = price
			pos.CostBasis = decimal.NewFromInt(int64(remaining)).Mul(price)
		case remaining == 0:
			pos.AvgEntryPrice = decimal.Zero
			pos.CostBasis = decimal.Zero
		}
	}

	pos.YesPosition += signed
}

func signedContracts(fill types.FillUpdate) int {
	switch {
	case fill.Side == types.Yes && fill.Action == types.Buy:
		return fill.Count
	case fill.Side == types.No && fill.Action == types.Sell:
		return fill.Count
	case fill.Side == types.Yes && fill.Action == types.Sell:
		return -fill.Count
	case fill.Side == types.No && fill.Action == types.Buy:
		return -fill.Count
	default:
		return 0
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// MaxLoss is the worst-case payout loss at settlement given the current basis.
//
//	Long YES (position > 0): cost_basis (worst case: expires NO, worth 0).
//	Short YES/long NO (position < 0): |position| - |cost_basis|.
//	Flat: 0.
func MaxLoss(pos types.PositionState) decimal.Decimal {
	switch {
	case pos.YesPosition > 0:
		loss := pos.CostBasis
		if loss.IsNegative() {
			return decimal.Zero
		}
		return loss
	case pos.YesPosition < 0:
		loss := decimal.NewFromInt(int64(abs(pos.YesPosition))).Sub(pos.CostBasis.Abs())
		if loss.IsNegative() {
			return decimal.Zero
		}
		return loss
	default:
		return decimal.Zero
	}
}

// UnrealizedPnL given the current blended fair probability.
//
//	Long:  contracts * (fair - avg_entry)
//	Short: contracts * (avg_entry - fair)
func UnrealizedPnL(pos types.PositionState, fair float64) decimal.Decimal {
	contracts := decimal.NewFromInt(int64(abs(pos.YesPosition)))
	fairDec := decimal.NewFromFloat(fair)
	if pos.YesPosition > 0 {
		return contracts.Mul(fairDec.Sub(pos.AvgEntryPrice))
	}
	if pos.YesPosition < 0 {
		return contracts.Mul(pos.AvgEntryPrice.Sub(fairDec))
	}
	return decimal.Zero
}

// MaxContractsToAdd returns the largest contract count this order may be
// sized at without exceeding the remaining loss budget.
//
//	Closing order (sell / reducing existing exposure): |yes_position|, no budget consumed.
//	Opening order: floor(remaining_loss_budget / price).
func MaxContractsToAdd(price float64, isClosing bool, pos types.PositionState, maxLossPerMarket float64) int {
	if isClosing {
		return abs(pos.YesPosition)
	}
	if price <= 0 {
		return 0
	}
	remaining := decimal.NewFromFloat(maxLossPerMarket).Sub(MaxLoss(pos))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return int(remaining.Div(decimal.NewFromFloat(price)).IntPart())
}
