package blend

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"blendflow/internal/services"
)

// Methods.
const (
	MethodLinear = "linear"
	MethodSNN    = "snn"
	MethodSPADE  = "spade"
)

// Request describes one blend.
type Request struct {
	First  string
	Second string
	Output string
	Ratio  float64
	Method string
}

// Result summarizes a produced blend.
type Result struct {
	Output string
	Frames int
	Bytes  int64
}

// Service blends two BVH files into a third.
type Service interface {
	Blend(ctx context.Context, req Request) (Result, error)
}

// Engine is the local Service implementation.
type Engine struct{}

// NewEngine constructs the local blend engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Blend reads both inputs, blends them, and writes the output atomically.
func (e *Engine) Blend(ctx context.Context, req Request) (Result, error) {
	switch req.Method {
	case MethodLinear, "":
	case MethodSNN, MethodSPADE:
		return Result{}, services.WithHint(
			services.Wrap(services.ErrPermanent, "transform", req.Method, "method requires external model", nil),
			"use method: linear or run the model-backed blender separately",
		)
	default:
		return Result{}, services.Wrap(services.ErrValidation, "transform", "select method", fmt.Sprintf("unknown method %q", req.Method), nil)
	}
	if req.Ratio < 0 || req.Ratio > 1 || math.IsNaN(req.Ratio) {
		return Result{}, services.Wrap(services.ErrValidation, "transform", "check ratio", fmt.Sprintf("ratio %v outside [0, 1]", req.Ratio), nil)
	}

	first, err := load(req.First)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	second, err := load(req.Second)
	if err != nil {
		return Result{}, err
	}

	blended, err := Linear(first, second, req.Ratio)
	if err != nil {
		return Result{}, services.Wrap(services.ErrMalformedInput, "transform", "blend", "incompatible motions", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	size, err := writeAtomic(req.Output, blended)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "transform", "write output", req.Output, err)
	}
	return Result{Output: req.Output, Frames: len(blended.Frames), Bytes: size}, nil
}

// Linear interpolates two motions with matching skeletons. Both motions are
// resampled onto a normalized timeline whose length and frame time are
// themselves interpolated by ratio.
func Linear(a, b *Motion, ratio float64) (*Motion, error) {
	if a.Channels != b.Channels {
		return nil, fmt.Errorf("channel count mismatch: %d vs %d", a.Channels, b.Channels)
	}
	frames := int(math.Round(lerp(float64(len(a.Frames)), float64(len(b.Frames)), ratio)))
	if frames < 1 {
		frames = 1
	}
	out := &Motion{
		Hierarchy: a.Hierarchy,
		Channels:  a.Channels,
		FrameTime: lerp(a.FrameTime, b.FrameTime, ratio),
		Frames:    make([][]float64, frames),
	}
	for i := 0; i < frames; i++ {
		t := 0.0
		if frames > 1 {
			t = float64(i) / float64(frames-1)
		}
		fa := sample(a, t)
		fb := sample(b, t)
		frame := make([]float64, a.Channels)
		for c := range frame {
			frame[c] = lerp(fa[c], fb[c], ratio)
		}
		out.Frames[i] = frame
	}
	return out, nil
}

// sample returns the motion's pose at normalized time t in [0, 1].
func sample(m *Motion, t float64) []float64 {
	n := len(m.Frames)
	if n == 1 {
		return m.Frames[0]
	}
	pos := t * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return m.Frames[n-1]
	}
	frac := pos - float64(lo)
	out := make([]float64, m.Channels)
	for c := range out {
		out[c] = lerp(m.Frames[lo][c], m.Frames[lo+1][c], frac)
	}
	return out
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func load(path string) (*Motion, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "transform", "open input", path, err)
		}
		return nil, services.Wrap(services.ErrPermanent, "transform", "open input", path, err)
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedInput, "transform", "parse input", filepath.Base(path), err)
	}
	return m, nil
}

func writeAtomic(path string, m *Motion) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blend-*.bvh")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())
	if err := m.Write(tmp); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
