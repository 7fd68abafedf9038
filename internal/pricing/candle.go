// Package pricing defines the scalar and OHLC value types that flow through
// every growing array, timelapse, source, digest, and indicator in this
// module. Prices are always scaled externally to unsigned integers (e.g.
// satoshis, or 6-digit fixed point) so that no floating point ever enters
// raw data.
package pricing

import "github.com/shopspring/decimal"

// StandardizedPrice is a scaled, unsigned integer price. The scale (how many
// implied decimal places) is a concern of the caller, never of this type.
type StandardizedPrice uint64

// Decimal renders p as a human-readable decimal.Decimal for logging, given
// the number of implied fractional digits. This exists purely for display —
// it is never used in the arithmetic paths of this module, which stay in
// integer space per the no-floats invariant.
func (p StandardizedPrice) Decimal(scale int32) decimal.Decimal {
	return decimal.New(int64(p), -scale)
}

// Candle is an immutable OHLC record over one interval. Invariant:
// min <= start, end <= max.
type Candle struct {
	Start StandardizedPrice
	End   StandardizedPrice
	Min   StandardizedPrice
	Max   StandardizedPrice
}

// NewCandle seeds a one-tick candle from a single price.
func NewCandle(p StandardizedPrice) Candle {
	return Candle{Start: p, End: p, Min: p, Max: p}
}

// MergePrice extends the candle by one more tick, widening min/max and
// moving the end to p.
func (c Candle) MergePrice(p StandardizedPrice) Candle {
	return Candle{
		Start: c.Start,
		End:   p,
		Min:   min(c.Min, p),
		Max:   max(c.Max, p),
	}
}

// MergeCandle folds another candle into this one.
//
// The end field is computed as max(self.Start, other.Start) rather than
// max(self.End, other.End) or other.End. This mirrors the original
// implementation literally; it is very likely a bug (see SPEC_FULL.md §9 /
// DESIGN.md), but the behavior is preserved rather than corrected.
func (c Candle) MergeCandle(o Candle) Candle {
	return Candle{
		Start: min(c.Start, o.Start),
		End:   max(c.Start, o.Start),
		Min:   min(c.Min, o.Min),
		Max:   max(c.Max, o.Max),
	}
}

// Project returns the scalar named by component, for MovingMean and similar
// consumers that reduce a candle to one float column.
func (c Candle) Project(component int) StandardizedPrice {
	switch component {
	case 1:
		return c.Start
	case 2:
		return c.Min
	case 3:
		return c.Max
	default:
		return c.End
	}
}

func min(a, b StandardizedPrice) StandardizedPrice {
	if a < b {
		return a
	}
	return b
}

func max(a, b StandardizedPrice) StandardizedPrice {
	if a > b {
		return a
	}
	return b
}
