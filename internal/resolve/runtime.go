package resolve

import (
	"log"

	"github.com/softstation/icon-ctld/internal/config"
	"github.com/softstation/icon-ctld/internal/icons"
	"github.com/softstation/icon-ctld/internal/index"
	"github.com/softstation/icon-ctld/internal/pkgcache"
	"github.com/softstation/icon-ctld/internal/pkgdb"
)

// Runtime bundles every component of the resolution pipeline, constructed
// once at startup and passed around explicitly.
type Runtime struct {
	Config   *config.Config
	Index    *index.Index
	Mapper   *pkgdb.Mapper // nil when the pkg map is disabled
	Cache    *icons.Cache
	Resolver *Resolver

	pkgCache *pkgcache.Cache
}

// NewRuntime wires the pipeline: starts both background index builds,
// binds the icon cache to the loop and subscribes it to configuration
// changes. The loop must already be running.
func NewRuntime(cfg *config.Config, loop *icons.Loop) (*Runtime, error) {
	curated, err := LoadCuratedTable(cfg.CuratedTable())
	if err != nil {
		return nil, err
	}

	ix := index.New(cfg.Locale(), cfg.DesktopDirs)
	ix.BuildAsync()

	var (
		mapper *pkgdb.Mapper
		pc     *pkgcache.Cache
	)
	if cfg.DisablePkgMap() {
		log.Printf("[DEBUG] Package-to-desktop map disabled")
	} else {
		pc, err = pkgcache.New()
		if err != nil {
			// The persistent cache is an optimization, not a requirement.
			log.Printf("[WARN] Package map cache unavailable: %v", err)
			pc = nil
		}
		mapper = pkgdb.NewMapper(pkgdb.ExecQuery{}, cfg.Workers(), pc)
		mapper.BuildAsync()
	}

	cache := icons.NewCache(loop, cfg)
	cache.Watch()

	return &Runtime{
		Config:   cfg,
		Index:    ix,
		Mapper:   mapper,
		Cache:    cache,
		Resolver: New(curated, ix, mapper, cache),
		pkgCache: pc,
	}, nil
}

// Close releases the persistent cache.
func (rt *Runtime) Close() error {
	if rt.pkgCache != nil {
		return rt.pkgCache.Close()
	}
	return nil
}
