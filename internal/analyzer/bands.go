// ABOUTME: Partitioning of frequency bins into the four visual bands
// ABOUTME: Computes per-band targets and the exponential smoothing step
package analyzer

import "github.com/visual-lock/visuallock/pkg/audio"

// BandSmoothing is the fraction of the previous value kept each tick
const BandSmoothing = 0.85

type binRange struct{ lo, hi int }

// Bin ranges at 2048-point resolution: roughly 0-60Hz, 60-250Hz, 250-2kHz
// and 2k-20kHz at 44.1kHz
var bandRanges = [4]binRange{
	{0, 3},
	{3, 12},
	{12, 93},
	{93, BinCount},
}

// bandTargets returns each band's byte sum normalized by range size * 255
func bandTargets(data []byte) [4]float64 {
	var out [4]float64
	for b, r := range bandRanges {
		sum := 0
		for i := r.lo; i < r.hi && i < len(data); i++ {
			sum += int(data[i])
		}
		out[b] = float64(sum) / float64((r.hi-r.lo)*255)
	}
	return out
}

func smoothToward(current, target float64) float64 {
	return current + (target-current)*(1-BandSmoothing)
}

// step advances bands one tick toward the targets in data
func step(bands audio.BandEnergies, data []byte) audio.BandEnergies {
	t := bandTargets(data)
	return audio.BandEnergies{
		Sub:  smoothToward(bands.Sub, t[0]),
		Bass: smoothToward(bands.Bass, t[1]),
		Mid:  smoothToward(bands.Mid, t[2]),
		High: smoothToward(bands.High, t[3]),
	}
}
