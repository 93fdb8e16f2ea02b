package twap

import (
	"errors"

	sdkmath "cosmossdk.io/math"
)

var (
	// ErrNoObservations indicates the ring holds nothing old enough yet.
	ErrNoObservations = errors.New("no price observations available")

	// ErrInvalidCapacity indicates a zero-capacity ring was requested.
	ErrInvalidCapacity = errors.New("observation capacity must be positive")
)

// Observation is one committed trade sample with its moving averages.
type Observation struct {
	BaseAmount  sdkmath.LegacyDec `json:"base_amount"`
	QuoteAmount sdkmath.LegacyDec `json:"quote_amount"`
	BaseSMA     sdkmath.LegacyDec `json:"base_sma"`
	QuoteSMA    sdkmath.LegacyDec `json:"quote_sma"`
	Timestamp   int64             `json:"timestamp"`
}

// Ring is the fixed-capacity circular observation buffer. A trade is first
// held as a precommit sample; it is folded into the ring by the next trade
// that arrives with a newer timestamp, so intra-second trades merge into one
// observation.
type Ring struct {
	buf            []Observation
	head           int
	count          int
	pre            *Observation
	sumBase        sdkmath.LegacyDec
	sumQuote       sdkmath.LegacyDec
	trades         int
	minTradesToAvg int
}

// NewRing creates a ring with the given capacity and readiness threshold.
func NewRing(capacity, minTradesToAvg int) (*Ring, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Ring{
		buf:            make([]Observation, capacity),
		sumBase:        sdkmath.LegacyZeroDec(),
		sumQuote:       sdkmath.LegacyZeroDec(),
		minTradesToAvg: minTradesToAvg,
	}, nil
}

// Capacity returns the fixed buffer size.
func (r *Ring) Capacity() int { return len(r.buf) }

// Count returns the number of committed observations (<= capacity).
func (r *Ring) Count() int { return r.count }

// Trades returns the number of committed observations over the ring lifetime.
func (r *Ring) Trades() int { return r.trades }

// Ready reports whether enough trades accumulated for the averages to be
// meaningful; the orderbook controller gates on this.
func (r *Ring) Ready() bool { return r.trades >= r.minTradesToAvg }

// OnTrade records a trade in internal decimal units.
func (r *Ring) OnTrade(base, quote sdkmath.LegacyDec, now int64) {
	if r.pre != nil {
		if r.pre.Timestamp == now {
			r.pre.BaseAmount = r.pre.BaseAmount.Add(base)
			r.pre.QuoteAmount = r.pre.QuoteAmount.Add(quote)
			return
		}
		r.commit(*r.pre)
	}
	r.pre = &Observation{BaseAmount: base, QuoteAmount: quote, Timestamp: now}
}

// commit pushes a precommit sample into the ring, maintaining the running
// sums so the SMA is O(1) whether the ring is still filling or has wrapped.
func (r *Ring) commit(o Observation) {
	if r.count == len(r.buf) {
		oldest := r.buf[r.head]
		r.sumBase = r.sumBase.Sub(oldest.BaseAmount)
		r.sumQuote = r.sumQuote.Sub(oldest.QuoteAmount)
	}
	r.sumBase = r.sumBase.Add(o.BaseAmount)
	r.sumQuote = r.sumQuote.Add(o.QuoteAmount)

	window := r.count + 1
	if window > len(r.buf) {
		window = len(r.buf)
	}
	o.BaseSMA = r.sumBase.QuoInt64(int64(window))
	o.QuoteSMA = r.sumQuote.QuoInt64(int64(window))

	r.buf[r.head] = o
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.trades++
}

// Flush commits any pending precommit sample whose timestamp is older than
// now. Called before reading averages.
func (r *Ring) Flush(now int64) {
	if r.pre != nil && r.pre.Timestamp < now {
		r.commit(*r.pre)
		r.pre = nil
	}
}

// Last returns the most recently committed observation.
func (r *Ring) Last() (Observation, error) {
	if r.count == 0 {
		return Observation{}, ErrNoObservations
	}
	idx := (r.head - 1 + len(r.buf)) % len(r.buf)
	return r.buf[idx], nil
}

// ObserveAt returns the SMA price (quote per base) of the newest observation
// at or before the target timestamp.
func (r *Ring) ObserveAt(target int64) (sdkmath.LegacyDec, error) {
	if r.count == 0 {
		return sdkmath.LegacyDec{}, ErrNoObservations
	}
	for i := 1; i <= r.count; i++ {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		o := r.buf[idx]
		if o.Timestamp <= target {
			if o.BaseSMA.IsZero() {
				return sdkmath.LegacyDec{}, ErrNoObservations
			}
			return o.QuoteSMA.Quo(o.BaseSMA), nil
		}
	}
	return sdkmath.LegacyDec{}, ErrNoObservations
}

// Clone deep-copies the ring.
func (r *Ring) Clone() *Ring {
	c := &Ring{
		buf:            make([]Observation, len(r.buf)),
		head:           r.head,
		count:          r.count,
		sumBase:        r.sumBase,
		sumQuote:       r.sumQuote,
		trades:         r.trades,
		minTradesToAvg: r.minTradesToAvg,
	}
	copy(c.buf, r.buf)
	if r.pre != nil {
		pre := *r.pre
		c.pre = &pre
	}
	return c
}
