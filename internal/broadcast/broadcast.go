// Package broadcast defines the capability contract that lets an Indicator
// depend on either a Source or another Indicator without runtime duck
// typing. Every producer in the dependency graph exposes the same narrow
// surface; the projection needed for scalar consumers (MovingMean et al.)
// is resolved once at construction via Kind and Component, not re-dispatched
// on every row.
package broadcast

import (
	"time"

	"candlegraph/internal/interval"
	"candlegraph/internal/pricing"
)

// RefreshArgs is the payload carried by both fan-out events: the half-open
// row range [Start, End) that was just written or recomputed.
type RefreshArgs struct {
	Start int
	End   int
}

// Kind tags what a Broadcaster physically stores, so a dependent resolves
// its projection once rather than duck-typing per row.
type Kind int

const (
	KindPrice Kind = iota
	KindCandle
	KindIndicator
)

// Component selects which OHLC field a candle-typed broadcaster projects to
// a scalar. Ignored by price and indicator broadcasters.
type Component int

const (
	ComponentEnd Component = iota
	ComponentStart
	ComponentMin
	ComponentMax
)

// Unsubscribe detaches a previously registered callback. Calling it more
// than once is a no-op.
type Unsubscribe func()

// Broadcaster is implemented by Source and Indicator: anything an Indicator
// may depend on.
type Broadcaster interface {
	Interval() interval.Interval
	BaseTimestamp() time.Time
	Len() int
	Kind() Kind

	// SubscribeIndicator registers cb on this broadcaster's
	// on_refresh_indicators event and returns a handle to unsubscribe.
	SubscribeIndicator(cb func(RefreshArgs)) Unsubscribe

	// ProjectedAt returns row i as a float64 scalar, applying component if
	// this broadcaster is candle-typed. It never fails for i < Len(); the
	// caller is responsible for bounds.
	ProjectedAt(i int, component Component) float64
}

// LinkedBroadcaster is implemented by Candle-typed Sources: the subset of
// producers a Digest/LinkedSource may rebin from.
type LinkedBroadcaster interface {
	Interval() interval.Interval
	BaseTimestamp() time.Time
	Len() int

	// SubscribeLinked registers cb on this source's on_refresh_linked_sources
	// event and returns a handle to unsubscribe.
	SubscribeLinked(cb func(RefreshArgs)) Unsubscribe

	// CandleAt returns the candle stored at row i.
	CandleAt(i int) pricing.Candle
}
