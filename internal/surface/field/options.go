package field

import (
	"fmt"
	"math"

	"github.com/banshee-data/surface.report/internal/config"
)

// Method selects the back-end of convolution-like operations.
type Method int

const (
	// MethodAuto picks direct summation or FFT from the problem size.
	MethodAuto Method = iota
	MethodDirect
	MethodFFT
)

func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodDirect:
		return "direct"
	case MethodFFT:
		return "fft"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod converts "auto", "direct" or "fft" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "auto":
		return MethodAuto, nil
	case "direct":
		return MethodDirect, nil
	case "fft":
		return MethodFFT, nil
	}
	return MethodAuto, fmt.Errorf("unknown convolution method %q", s)
}

// Options carries the tunables of the engine. The zero value is not useful;
// start from DefaultOptions or OptionsFromTuning.
type Options struct {
	Method               Method
	LaplaceTolerance     float64
	LaplaceMaxIterations int
	// DistPoints is the default histogram resolution, 0 for automatic.
	DistPoints         int
	InclinationBins    int
	RowShiftMinFreedom int
}

// DefaultOptions returns the built-in tunables.
func DefaultOptions() Options {
	return OptionsFromTuning(config.EmptyTuningConfig())
}

// OptionsFromTuning builds Options from a tuning configuration. An invalid
// convolution method falls back to MethodAuto; TuningConfig.Validate rejects
// it earlier on the normal loading path.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	m, err := ParseMethod(cfg.GetConvolutionMethod())
	if err != nil {
		opsf("%v, using auto", err)
	}
	return Options{
		Method:               m,
		LaplaceTolerance:     cfg.GetLaplaceTolerance(),
		LaplaceMaxIterations: cfg.GetLaplaceMaxIterations(),
		DistPoints:           cfg.GetDistPoints(),
		InclinationBins:      cfg.GetInclinationBins(),
		RowShiftMinFreedom:   cfg.GetRowShiftMinFreedom(),
	}
}

// WithMethod returns a copy of o using method m.
func (o Options) WithMethod(m Method) Options {
	o.Method = m
	return o
}

// rowDirect decides the back-end for a 1-D convolution of rows of width
// samples with a kernel of kres samples.
func (o Options) rowDirect(width, kres int) bool {
	switch o.Method {
	case MethodDirect:
		return true
	case MethodFFT:
		return false
	}
	direct := width <= 12 || float64(kres) <= 3*(math.Log(float64(width))-1)
	diagf("row convolution %d/%d: direct=%v", width, kres, direct)
	return direct
}

// planeDirect decides the back-end for a 2-D convolution with a
// kxres×kyres kernel.
func (o Options) planeDirect(kxres, kyres int) bool {
	switch o.Method {
	case MethodDirect:
		return true
	case MethodFFT:
		return false
	}
	direct := kxres*kyres <= 25
	diagf("2-D convolution with %dx%d kernel: direct=%v", kxres, kyres, direct)
	return direct
}
