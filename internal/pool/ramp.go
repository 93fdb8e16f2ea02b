package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// StartRamp schedules a linear transition of (amp, gamma) finishing at
// futureTime. Grounded on the stableswap ramp rules: bounded target, bounded
// relative amp change, and a minimum interval between ramp starts.
func (p *Pool) StartRamp(now int64, futureAmp, futureGamma sdkmath.LegacyDec, futureTime int64) error {
	if err := types.ValidateAmpGamma(futureAmp, futureGamma); err != nil {
		return err
	}
	if futureTime <= now {
		return fmt.Errorf("%w: ramp end %d is not in the future", types.ErrInvalidPoolParams, futureTime)
	}
	if p.LastRampStart != 0 && now < p.LastRampStart+int64(types.MinRampInterval.Seconds()) {
		return types.ErrRampTooSoon
	}
	currentAmp, currentGamma := p.AmpGamma.Values(now)
	ratio := futureAmp.Quo(currentAmp)
	if ratio.GT(types.MaxAmpChange) || ratio.LT(sdkmath.LegacyOneDec().Quo(types.MaxAmpChange)) {
		return fmt.Errorf("%w: amp change ratio %s exceeds the limit", types.ErrAmpGammaOutOfBounds, ratio)
	}
	p.AmpGamma = types.AmpGamma{
		InitialAmp:   currentAmp,
		InitialGamma: currentGamma,
		FutureAmp:    futureAmp,
		FutureGamma:  futureGamma,
		InitialTime:  now,
		FutureTime:   futureTime,
	}
	p.LastRampStart = now
	return nil
}

// StopRamp freezes (amp, gamma) at their current interpolated values.
func (p *Pool) StopRamp(now int64) {
	amp, gamma := p.AmpGamma.Values(now)
	p.AmpGamma = types.AmpGamma{
		InitialAmp: amp, InitialGamma: gamma,
		FutureAmp: amp, FutureGamma: gamma,
		InitialTime: now, FutureTime: now,
	}
}
