package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/serialize"
)

// generators fill a field; x and y run over [0, 1).
var generators = map[string]func(f *field.Field, rng *rand.Rand, amp float64){
	"noise": func(f *field.Field, rng *rand.Rand, amp float64) {
		for k := range f.Data() {
			f.Data()[k] = amp * rng.NormFloat64()
		}
	},
	"plane": func(f *field.Field, rng *rand.Rand, amp float64) {
		bx, by := rng.Float64()-0.5, rng.Float64()-0.5
		eachPixel(f, func(x, y float64) float64 { return amp * (bx*x + by*y) })
	},
	"sine": func(f *field.Field, rng *rand.Rand, amp float64) {
		kx, ky := float64(1+rng.Intn(8)), float64(rng.Intn(8))
		eachPixel(f, func(x, y float64) float64 { return amp * math.Sin(2*math.Pi*(kx*x+ky*y)) })
	},
	"bumps": func(f *field.Field, rng *rand.Rand, amp float64) {
		type bump struct{ x, y, r, h float64 }
		bumps := make([]bump, 12)
		for i := range bumps {
			bumps[i] = bump{rng.Float64(), rng.Float64(), 0.02 + 0.08*rng.Float64(), amp * (0.5 + rng.Float64())}
		}
		eachPixel(f, func(x, y float64) float64 {
			var z float64
			for _, b := range bumps {
				d2 := (x-b.x)*(x-b.x) + (y-b.y)*(y-b.y)
				z += b.h * math.Exp(-d2/(2*b.r*b.r))
			}
			return z
		})
	},
	"steps": func(f *field.Field, rng *rand.Rand, amp float64) {
		n := 2 + rng.Intn(5)
		eachPixel(f, func(x, y float64) float64 { return amp * math.Floor(x*float64(n)) })
	},
}

func eachPixel(f *field.Field, fn func(x, y float64) float64) {
	xres, yres := f.XRes(), f.YRes()
	for i := 0; i < yres; i++ {
		for j := 0; j < xres; j++ {
			f.Data()[i*xres+j] = fn(float64(j)/float64(xres), float64(i)/float64(yres))
		}
	}
	f.Invalidate()
}

func runGen(e *env, args []string) error {
	fs := newFlagSet("gen", "[flags] <out.surf>")
	kind := fs.String("kind", "bumps", "noise, plane, sine, bumps or steps; join with + to superpose")
	xres := fs.Int("xres", 256, "columns")
	yres := fs.Int("yres", 256, "rows")
	xreal := fs.Float64("xreal", 1e-5, "physical width")
	yreal := fs.Float64("yreal", 0, "physical height (0 keeps pixels square)")
	amp := fs.Float64("amp", 1e-7, "amplitude")
	seed := fs.Int64("seed", 42, "random seed")
	unit := fs.String("unit", "m", "lateral and value unit")
	if err := parseArgs(fs, args, 1); err != nil {
		return err
	}
	if *xres <= 0 || *yres <= 0 || *xreal <= 0 || *yreal < 0 {
		return fmt.Errorf("invalid geometry %dx%d, %gx%g", *xres, *yres, *xreal, *yreal)
	}
	if *yreal == 0 {
		*yreal = *xreal * float64(*yres) / float64(*xres)
	}

	rng := rand.New(rand.NewSource(*seed))
	f := field.New(*xres, *yres, *xreal, *yreal)
	f.XYUnit, f.ZUnit = *unit, *unit
	layer := f.NewAlike()
	for _, k := range splitList(*kind) {
		gen, ok := generators[k]
		if !ok {
			return fmt.Errorf("unknown field kind %q", k)
		}
		gen(layer, rng, *amp)
		for i, v := range layer.Data() {
			f.Data()[i] += v
		}
	}
	f.Invalidate()

	if err := serialize.WriteFile(fs.Arg(0), f); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "wrote %s: %dx%d %s\n", fs.Arg(0), *xres, *yres, *kind)
	return nil
}
