package icons

import (
	"image"
	"log"

	"github.com/softstation/icon-ctld/internal/config"
	"github.com/softstation/icon-ctld/internal/icontheme"
)

// CachedIcon is a materialized icon: the resolved theme file plus its
// decoded image where a decoder exists. Image may be nil for SVG/XPM hits.
type CachedIcon struct {
	Name  string
	Path  string
	Image image.Image
}

// ThemeProvider resolves (name, size, scale) to an icon file.
type ThemeProvider interface {
	FindIcon(name string, size, scale int) (icontheme.Icon, bool)
}

type cacheKey struct {
	name  string
	size  int
	scale int
}

// Cache memoizes theme lookups by (name-or-fallback, size, scale). All
// methods must run on the privileged loop; misses are cached as nil so a
// package with no theme icon does not pay the lookup cost repeatedly.
// Invalidation is wholesale, triggered by theme-name or scale changes.
type Cache struct {
	loop        *Loop
	cfg         *config.Config
	newProvider func() ThemeProvider

	provider ThemeProvider
	scale    int
	fallback string
	entries  map[cacheKey]*CachedIcon
}

// NewCache creates a cache bound to a loop, using the native icon-theme
// lookup for the configured theme.
func NewCache(loop *Loop, cfg *config.Config) *Cache {
	return NewCacheWithProvider(loop, cfg, func() ThemeProvider {
		return icontheme.NewLookup(cfg.ThemeName())
	})
}

// NewCacheWithProvider creates a cache with a custom provider factory.
// The factory is re-invoked on every invalidation so a theme-name change
// takes effect.
func NewCacheWithProvider(loop *Loop, cfg *config.Config, newProvider func() ThemeProvider) *Cache {
	c := &Cache{
		loop:        loop,
		cfg:         cfg,
		newProvider: newProvider,
		fallback:    cfg.FallbackIcon(),
		entries:     make(map[cacheKey]*CachedIcon),
	}
	loop.Do(func() {
		c.provider = newProvider()
		c.scale = cfg.ScaleFactor()
	})
	return c
}

// Watch subscribes to configuration changes and posts a wholesale
// invalidation onto the loop for every theme or scale change.
func (c *Cache) Watch() {
	sub := c.cfg.Subscribe()
	go func() {
		for ch := range sub {
			if ch.Theme || ch.Scale {
				c.loop.Post(c.Invalidate)
			}
		}
	}()
}

// Resolve materializes an icon for a name (possibly empty) at a size.
// Loop-only. A nil result means not even the fallback icon exists in the
// active theme; that outcome is cached too.
func (c *Cache) Resolve(name string, size int) *CachedIcon {
	c.loop.assert()

	lookupName := name
	if lookupName == "" {
		lookupName = c.fallback
	}

	key := cacheKey{name: lookupName, size: size, scale: c.scale}
	if cached, ok := c.entries[key]; ok {
		return cached
	}

	icon, ok := c.provider.FindIcon(lookupName, size, c.scale)
	if !ok && lookupName != c.fallback {
		icon, ok = c.provider.FindIcon(c.fallback, size, c.scale)
	}

	var result *CachedIcon
	if ok {
		img, err := icontheme.Decode(icon.Path)
		if err != nil {
			log.Printf("[DEBUG] Icon %s not decoded: %v", icon.Path, err)
		}
		result = &CachedIcon{Name: icon.Name, Path: icon.Path, Image: img}
	}

	c.entries[key] = result
	return result
}

// Invalidate clears the whole cache and recomputes the provider and scale
// factor. Loop-only.
func (c *Cache) Invalidate() {
	c.loop.assert()
	c.entries = make(map[cacheKey]*CachedIcon)
	c.provider = c.newProvider()
	c.scale = c.cfg.ScaleFactor()
	log.Printf("[DEBUG] Icon cache invalidated (theme=%s scale=%d)", c.cfg.ThemeName(), c.scale)
}

// Len returns the number of cached entries, hits and misses both.
// Loop-only.
func (c *Cache) Len() int {
	c.loop.assert()
	return len(c.entries)
}

// Loop returns the privileged loop this cache is bound to.
func (c *Cache) Loop() *Loop {
	return c.loop
}
