package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// PowerSpectrum returns the one-sided amplitude spectrum of real samples,
// len(data)/2+1 values with the mean removed from bin 0.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	centered := make([]float64, len(data))
	copy(centered, data)
	floats.AddConst(-floats.Sum(data)/float64(len(data)), centered)

	fft := fourier.NewFFT(len(centered))
	coeff := fft.Coefficients(nil, centered)
	power := make([]float64, len(coeff))
	for i, c := range coeff {
		power[i] = cmplx.Abs(c) / float64(len(data))
	}
	return power
}

// DominantFrequency returns the frequency of the largest spectral peak of
// samples taken every dt.
func DominantFrequency(data []float64, dt float64) float64 {
	power := PowerSpectrum(data)
	if len(power) < 2 || !(dt > 0) {
		return 0
	}
	best := floats.MaxIdx(power[1:]) + 1
	return float64(best) / (float64(len(data)) * dt)
}

// SpectrumFrequencies returns the frequency of each PowerSpectrum bin.
func SpectrumFrequencies(n int, dt float64) []float64 {
	freqs := make([]float64, n/2+1)
	for i := range freqs {
		freqs[i] = float64(i) / (float64(n) * dt)
	}
	return freqs
}

// SpectralEntropy is the Shannon entropy of the normalized power
// distribution. Broadband chaotic signals score higher than periodic ones.
func SpectralEntropy(data []float64) float64 {
	power := PowerSpectrum(data)
	if len(power) < 2 {
		return 0
	}
	p := make([]float64, len(power)-1)
	for i, v := range power[1:] {
		p[i] = v * v
	}
	total := floats.Sum(p)
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, v := range p {
		if v > 0 {
			q := v / total
			h -= q * math.Log(q)
		}
	}
	return h
}
