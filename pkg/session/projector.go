package session

import (
	"fmt"
	"math/rand"

	"orientsearch/pkg/config"
	"orientsearch/pkg/degrade"
	"orientsearch/pkg/projection"
	"orientsearch/pkg/symmetry"
)

// BuildProjector creates the level's phantom density with the symmetry of
// sym. The phantom is seeded independently of the target so that the same
// level always shows the same particle.
func BuildProjector(cfg *config.Config, sym *symmetry.Symmetry) (projection.Projector, error) {
	rng := rand.New(rand.NewSource(cfg.Level.Seed ^ 0x5eed))
	seeds := projection.RandomSeeds(rng, cfg.Phantom.Seeds, cfg.Phantom.Radius, cfg.Phantom.Sigma)
	phantom := projection.NewSymmetricPhantom(seeds, sym.Matrices())

	switch cfg.Phantom.Projector {
	case "analytic":
		return phantom, nil
	case "voxel":
		vol := phantom.Rasterize(cfg.Level.ImageSize, cfg.Level.PixelSize)
		vol = degrade.ApplyLowPass3D(vol, cfg.Phantom.PrefilterNyquist)
		return projection.NewVoxelProjector(vol)
	}
	return nil, fmt.Errorf("%w: unknown projector %q", config.ErrInvalidConfig, cfg.Phantom.Projector)
}
