package protocol

// DefaultVRef is the ADC reference voltage on smnt-mb.
const DefaultVRef = 3.3

// Voltage converts a raw sample to volts for the given reference.
func Voltage(sample uint16, vref float64) float64 {
	return float64(sample&SampleMax) * vref / SampleMax
}

// Mean returns the average raw sample value.
func Mean(samples []uint16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum uint64
	for _, s := range samples {
		sum += uint64(s & SampleMax)
	}
	return float64(sum) / float64(len(samples))
}

// Normalize removes the microphone bias and scales the block to -1..1.
func Normalize(samples []uint16) []float64 {
	out := make([]float64, len(samples))
	if len(samples) == 0 {
		return out
	}
	bias := Mean(samples)
	half := float64(SampleMax) / 2
	for i, s := range samples {
		out[i] = (float64(s&SampleMax) - bias) / half
	}
	return out
}

// PeakToPeak returns the raw sample swing of a block.
func PeakToPeak(samples []uint16) uint16 {
	if len(samples) == 0 {
		return 0
	}
	lo, hi := samples[0]&SampleMax, samples[0]&SampleMax
	for _, s := range samples[1:] {
		s &= SampleMax
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return hi - lo
}
