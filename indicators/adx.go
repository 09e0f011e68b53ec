package indicators

import (
	"math"

	"github.com/rustyeddy/daytrader/market"
)

// DirectionalIndex holds Wilder's ADX with its +DI/-DI components.
type DirectionalIndex struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX implements Wilder's Average Directional Index (trend strength).
//
// Readiness / warmup:
//   - +DI/-DI need period bar-to-bar differences and first appear at index period.
//   - ADX is seeded with the mean of the first period DX values and first
//     appears at index 2*period-1.
//
// A window with zero range has no directional movement: DI and DX are 0 there
// rather than undefined, so a flat market reads as "no trend".
func ADX(bars market.Series, period int) DirectionalIndex {
	n := len(bars)
	di := DirectionalIndex{
		ADX:     undefinedSeries(n),
		PlusDI:  undefinedSeries(n),
		MinusDI: undefinedSeries(n),
	}
	if period <= 0 || n <= period {
		return di
	}

	p := float64(period)
	var smTR, smPDM, smMDM float64
	var dxSum, adx float64

	for i := 1; i < n; i++ {
		c, prev := bars[i], bars[i-1]

		upMove := c.High - prev.High
		downMove := prev.Low - c.Low
		var pdm, mdm float64
		if upMove > downMove && upMove > 0 {
			pdm = upMove
		}
		if downMove > upMove && downMove > 0 {
			mdm = downMove
		}
		tr := trueRange(c.High, c.Low, prev.Close)

		if i <= period {
			smTR += tr
			smPDM += pdm
			smMDM += mdm
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/p + tr
			smPDM = smPDM - smPDM/p + pdm
			smMDM = smMDM - smMDM/p + mdm
		}

		var pdi, mdi, dx float64
		if smTR > 0 {
			pdi = 100 * smPDM / smTR
			mdi = 100 * smMDM / smTR
		}
		if den := pdi + mdi; den > 0 {
			dx = 100 * math.Abs(pdi-mdi) / den
		}
		di.PlusDI[i] = pdi
		di.MinusDI[i] = mdi

		seedEnd := 2*period - 1
		switch {
		case i < seedEnd:
			dxSum += dx
		case i == seedEnd:
			dxSum += dx
			adx = dxSum / p
			di.ADX[i] = adx
		default:
			adx = (adx*(p-1) + dx) / p
			di.ADX[i] = adx
		}
	}
	return di
}
