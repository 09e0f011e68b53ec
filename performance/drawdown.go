package performance

import "math"

// DrawdownStats describes the peak-to-trough declines of an equity curve.
// Indices refer to the equity slice; a peak at the initial value reports
// index 0.
type DrawdownStats struct {
	Max     float64 // largest decline as a fraction of the running peak
	Start   int     // index of the peak preceding the largest decline
	End     int     // index of its trough
	Average float64 // mean of the deepest point of every drawdown episode
	Ulcer   float64 // sqrt(mean(percent drawdown^2))
	Series  []float64
}

// Drawdowns walks equity once, tracking the running peak that starts at
// initial.
func Drawdowns(initial float64, equity []float64) DrawdownStats {
	st := DrawdownStats{Series: make([]float64, len(equity))}
	if len(equity) == 0 {
		return st
	}

	peak, peakIdx := initial, 0
	var (
		episodes   []float64
		episodeMax float64
		sumSq      float64
	)
	for i, e := range equity {
		if e >= peak {
			if episodeMax > 0 {
				episodes = append(episodes, episodeMax)
				episodeMax = 0
			}
			peak, peakIdx = e, i
			continue
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - e) / peak
		}
		st.Series[i] = dd
		sumSq += (100 * dd) * (100 * dd)
		episodeMax = math.Max(episodeMax, dd)
		if dd > st.Max {
			st.Max, st.Start, st.End = dd, peakIdx, i
		}
	}
	if episodeMax > 0 {
		episodes = append(episodes, episodeMax)
	}

	if len(episodes) > 0 {
		sum := 0.0
		for _, d := range episodes {
			sum += d
		}
		st.Average = sum / float64(len(episodes))
	}
	st.Ulcer = math.Sqrt(sumSq / float64(len(equity)))
	return st
}
