package indicators

// RSI calculates Wilder's Relative Strength Index of closes. The first value
// lands on index period. A window with neither gains nor losses is undefined.
func RSI(closes []float64, period int) []float64 {
	out := undefinedSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	return 100 * SafeDiv(avgGain, avgGain+avgLoss)
}

// MACDLines holds the MACD line, its signal line and the histogram.
type MACDLines struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow), its signal EMA and the difference.
func MACD(closes []float64, fast, slow, signal int) MACDLines {
	f := EMA(closes, fast)
	s := EMA(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	sig := EMA(line, signal)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDLines{MACD: line, Signal: sig, Histogram: hist}
}

// Bands holds Bollinger bands.
type Bands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger returns SMA(period) +/- k standard deviations.
func Bollinger(closes []float64, period int, k float64) Bands {
	mid := SMA(closes, period)
	sd := RollingStd(closes, period)
	b := Bands{
		Middle: mid,
		Upper:  make([]float64, len(closes)),
		Lower:  make([]float64, len(closes)),
	}
	for i := range closes {
		b.Upper[i] = mid[i] + k*sd[i]
		b.Lower[i] = mid[i] - k*sd[i]
	}
	return b
}

// ZScore returns (x - SMA) / stddev over period bars.
func ZScore(x []float64, period int) []float64 {
	mid := SMA(x, period)
	sd := RollingStd(x, period)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = SafeDiv(x[i]-mid[i], sd[i])
	}
	return out
}
