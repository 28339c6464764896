package signal

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gauntlet/internal/logging"
)

// AnalyzerConfig tunes the programmatic frame analysis.
type AnalyzerConfig struct {
	// SharpnessThreshold: frames with Laplacian variance below it count as
	// blurred.
	SharpnessThreshold float64 `yaml:"sharpness_threshold" json:"sharpness_threshold"`
	// DarkLuma: rows or columns with mean luma below it count as dark.
	DarkLuma float64 `yaml:"dark_luma" json:"dark_luma"`
	// DarkBarMinRatio: minimum fraction of dark rows or columns before the
	// frame counts as barred.
	DarkBarMinRatio float64 `yaml:"dark_bar_min_ratio" json:"dark_bar_min_ratio"`
	// MosaicBoundaryFactor: ratio of block-boundary gradient to interior
	// gradient above which the frame counts as pixelated.
	MosaicBoundaryFactor float64 `yaml:"mosaic_boundary_factor" json:"mosaic_boundary_factor"`
	// MosaicBlockSizes: candidate mosaic cell sizes, in pixels.
	MosaicBlockSizes []int `yaml:"mosaic_block_sizes" json:"mosaic_block_sizes"`
}

// DefaultAnalyzerConfig returns the stock analysis parameters.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SharpnessThreshold:   100,
		DarkLuma:             10,
		DarkBarMinRatio:      0.05,
		MosaicBoundaryFactor: 1.8,
		MosaicBlockSizes:     []int{8, 16, 32},
	}
}

// Analyzer is a BlurScorer that measures frames directly: Laplacian variance
// for sharpness, row and column luma means for masking bars, and gradient
// periodicity for mosaic pixelation. It needs no external service.
type Analyzer struct {
	cfg AnalyzerConfig
	log *slog.Logger
}

// NewAnalyzer returns an analyzer with the given configuration.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{cfg: cfg, log: logging.New("signal")}
}

// ScoreBlur analyzes every frame of the artifact. A frame is obstructed when
// it is blurred, barred, or pixelated. An artifact with no frames is an
// extraction failure, not a clean result.
func (a *Analyzer) ScoreBlur(ctx context.Context, art Artifact) (*Blur, error) {
	if len(art.Frames) == 0 {
		return nil, fmt.Errorf("artifact %s has no frames", art.Ref)
	}

	out := &Blur{FramesTotal: len(art.Frames)}
	var scoreSum float64
	for _, path := range art.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := loadFrame(path)
		if err != nil {
			return nil, err
		}
		plane, w, h := luma(img)

		score := laplacianVariance(plane, w, h)
		scoreSum += score
		blurred := score < a.cfg.SharpnessThreshold
		barred := a.hasDarkBars(plane, w, h)
		pixelated := a.hasMosaic(plane, w, h)

		if barred {
			out.HasDarkBars = true
		}
		if pixelated {
			out.HasMosaic = true
		}
		if blurred || barred || pixelated {
			out.FramesCensored++
		}
		a.log.Debug("frame analyzed", "frame", path, "sharpness", score,
			"blurred", blurred, "barred", barred, "pixelated", pixelated)
	}
	out.AvgScore = scoreSum / float64(out.FramesTotal)
	out.Ratio = float64(out.FramesCensored) / float64(out.FramesTotal)
	return out, nil
}

// laplacianVariance measures sharpness as the variance of the 4-neighbor
// Laplacian over interior pixels. Blur suppresses high frequencies, so low
// variance means a soft image.
func laplacianVariance(plane []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	n := (w - 2) * (h - 2)
	var sum float64
	resp := make([]float64, 0, n)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := plane[(y-1)*w+x] + plane[(y+1)*w+x] +
				plane[y*w+x-1] + plane[y*w+x+1] - 4*plane[y*w+x]
			resp = append(resp, v)
			sum += v
		}
	}
	mean := sum / float64(n)
	var varSum float64
	for _, v := range resp {
		d := v - mean
		varSum += d * d
	}
	return varSum / float64(n)
}

// hasDarkBars reports whether enough full rows or columns are near-black to
// look like a masking bar rather than scene content.
func (a *Analyzer) hasDarkBars(plane []float64, w, h int) bool {
	darkRows := 0
	for y := 0; y < h; y++ {
		var sum float64
		for x := 0; x < w; x++ {
			sum += plane[y*w+x]
		}
		if sum/float64(w) < a.cfg.DarkLuma {
			darkRows++
		}
	}
	if float64(darkRows)/float64(h) > a.cfg.DarkBarMinRatio {
		return true
	}
	darkCols := 0
	for x := 0; x < w; x++ {
		var sum float64
		for y := 0; y < h; y++ {
			sum += plane[y*w+x]
		}
		if sum/float64(h) < a.cfg.DarkLuma {
			darkCols++
		}
	}
	return float64(darkCols)/float64(w) > a.cfg.DarkBarMinRatio
}

// hasMosaic reports whether the gradient energy concentrates on a regular
// grid. Pixelation produces flat cells with sharp steps at cell boundaries;
// for the true cell size the boundary gradients dominate the interior ones.
func (a *Analyzer) hasMosaic(plane []float64, w, h int) bool {
	for _, block := range a.cfg.MosaicBlockSizes {
		if block < 2 || w < 3*block || h < 3*block {
			continue
		}
		if gridRatio(plane, w, h, block, true) > a.cfg.MosaicBoundaryFactor &&
			gridRatio(plane, w, h, block, false) > a.cfg.MosaicBoundaryFactor {
			return true
		}
	}
	return false
}

// gridRatio compares mean absolute gradient at multiples of block against
// the mean elsewhere, along one axis.
func gridRatio(plane []float64, w, h, block int, vertical bool) float64 {
	var boundarySum, interiorSum float64
	var boundaryN, interiorN int
	if vertical {
		// Gradients across columns; boundaries are columns x = k*block.
		for y := 0; y < h; y++ {
			for x := 1; x < w; x++ {
				g := abs(plane[y*w+x] - plane[y*w+x-1])
				if x%block == 0 {
					boundarySum += g
					boundaryN++
				} else {
					interiorSum += g
					interiorN++
				}
			}
		}
	} else {
		for y := 1; y < h; y++ {
			for x := 0; x < w; x++ {
				g := abs(plane[y*w+x] - plane[(y-1)*w+x])
				if y%block == 0 {
					boundarySum += g
					boundaryN++
				} else {
					interiorSum += g
					interiorN++
				}
			}
		}
	}
	if boundaryN == 0 || interiorN == 0 {
		return 0
	}
	boundaryMean := boundarySum / float64(boundaryN)
	interiorMean := interiorSum / float64(interiorN)
	if interiorMean == 0 {
		// Perfectly flat cells: any boundary energy at all is a grid.
		if boundaryMean > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return boundaryMean / interiorMean
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
