// Package resscan measures how stable clusterings are across a range of
// resolutions. It reports a curve and leaves the choice of resolution to the
// caller.
package resscan

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sctools/internal/adata"
	"sctools/internal/cluster"
	"sctools/internal/logging"
	"sctools/internal/runutil"
)

// Point is the agreement between the clustering at the previous
// resolution and the one at Resolution.
type Point struct {
	Resolution float64
	Score      float64
	Clusters   int
	R2         *float64 // CategoricalR2 against Options.Continuous, when given
}

// Resolutions returns step, 2*step, ... up to but excluding 1.0, in
// hundredths. step is rounded to the nearest hundredth.
func Resolutions(step float64) ([]float64, error) {
	bp := int(math.Round(step * 100))
	if step <= 0 || bp <= 0 {
		return nil, fmt.Errorf("resolution step must be at least 0.01, got %g", step)
	}
	var out []float64
	for k := bp; k < 100; k += bp {
		out = append(out, float64(k)/100)
	}
	return out, nil
}

// Options tune Scan.
type Options struct {
	Workers int // <= 0 means GOMAXPROCS
	Log     *zap.Logger

	// Continuous holds one value per cell. Each point then also reports how
	// much of it the clustering explains.
	Continuous []float64
}

// Scan clusters g at every resolution from Resolutions(step) and scores
// each adjacent pair with Agreement. The result has one point fewer than
// there are resolutions.
func Scan(ctx context.Context, g *adata.Neighbors, c cluster.Clusterer, step float64, opt Options) ([]Point, error) {
	res, err := Resolutions(step)
	if err != nil {
		return nil, err
	}
	if opt.Continuous != nil && g != nil && len(opt.Continuous) != g.N {
		return nil, fmt.Errorf("%w: %d continuous values, %d cells", adata.ErrShape, len(opt.Continuous), g.N)
	}
	log := logging.OrNop(opt.Log)
	start := time.Now()

	labels := make([][]string, len(res))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(runutil.EffectiveWorkers(opt.Workers, len(res)))
	for i, r := range res {
		eg.Go(func() error {
			l, err := c.Cluster(ectx, g, r)
			if err != nil {
				return fmt.Errorf("resolution %g: %w", r, err)
			}
			labels[i] = l
			log.Debug("clustered", zap.Float64("resolution", r), zap.Int("clusters", cluster.Count(l)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]Point, 0, max(len(res)-1, 0))
	for i := 1; i < len(res); i++ {
		p := Point{
			Resolution: res[i],
			Score:      Agreement(labels[i-1], labels[i]),
			Clusters:   cluster.Count(labels[i]),
		}
		if opt.Continuous != nil {
			r2 := CategoricalR2(labels[i], opt.Continuous)
			p.R2 = &r2
		}
		out = append(out, p)
	}
	log.Info("resolution scan done",
		zap.Int("resolutions", len(res)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
