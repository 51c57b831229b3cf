package strategy

import "aitrade/internal/indicator"

// MACDCross trades MACD/signal-line crossovers. A fresh crossover or
// crossunder reacts immediately; the position fallback catches
// transitions missed across a restart, with LastAction suppressing a
// repeat of the identical order when nothing has changed.
//
// Decide is pure: identical snapshots always yield identical intents,
// and the caller owns persisting state after a successful order.
type MACDCross struct {
	SharesPerTrade int
}

func (s MACDCross) Decide(snapshot MarketSnapshot) TradeIntent {
	signal := snapshot.Signal
	if signal.Position == indicator.PositionUnknown {
		return TradeIntent{Action: Hold, Reason: "signal_not_ready"}
	}

	switch snapshot.Side {
	case SideNone:
		if signal.Position == indicator.PositionAbove {
			return TradeIntent{
				Action: Buy,
				Qty:    s.SharesPerTrade,
				Reason: "macd_above_signal_open_long",
			}
		}
		return TradeIntent{
			Action: Short,
			Qty:    s.SharesPerTrade,
			Reason: "macd_below_signal_open_short",
		}

	case SideLong:
		if signal.Crossunder {
			return TradeIntent{
				Action: Sell,
				Qty:    snapshot.Qty + s.SharesPerTrade,
				Reason: "crossunder_flatten_and_flip",
			}
		}
		if signal.Position == indicator.PositionBelow && !snapshot.LastAction.IsSellSide() {
			return TradeIntent{
				Action: Sell,
				Qty:    snapshot.Qty + s.SharesPerTrade,
				Reason: "macd_below_signal_flatten_and_flip",
			}
		}

	case SideShort:
		if signal.Crossover {
			return TradeIntent{
				Action: CoverAndBuy,
				Qty:    abs(snapshot.Qty) + s.SharesPerTrade,
				Reason: "crossover_cover_and_buy",
			}
		}
		if signal.Position == indicator.PositionAbove && !snapshot.LastAction.IsBuySide() {
			return TradeIntent{
				Action: CoverAndBuy,
				Qty:    abs(snapshot.Qty) + s.SharesPerTrade,
				Reason: "macd_above_signal_cover_and_buy",
			}
		}
	}

	return TradeIntent{Action: Hold, Reason: "no_signal"}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
