package resolve

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/softstation/icon-ctld/internal/config"
	"github.com/softstation/icon-ctld/internal/icons"
	"github.com/softstation/icon-ctld/internal/icontheme"
	"github.com/softstation/icon-ctld/internal/index"
	"github.com/softstation/icon-ctld/internal/pkgdb"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// themeStub resolves every name it is given.
type themeStub struct{}

func (themeStub) FindIcon(name string, size, scale int) (icontheme.Icon, bool) {
	return icontheme.Icon{Name: name, Path: "/theme/" + name + ".png", Size: size, Scale: scale}, true
}

// queryStub serves a canned package file listing.
type queryStub struct {
	files map[string][]string
}

func (q queryStub) InstalledNames() []string {
	names := make([]string, 0, len(q.files))
	for name := range q.files {
		names = append(names, name)
	}
	return names
}

func (q queryStub) PackageFiles(pkg string) []string {
	return q.files[pkg]
}

var _ = Describe("Resolver", func() {
	var (
		tmpDir   string
		appsDir  string
		loop     *icons.Loop
		cache    *icons.Cache
		ix       *index.Index
		mapper   *pkgdb.Mapper
		resolver *Resolver
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "icond-resolve-test-*")
		Expect(err).NotTo(HaveOccurred())

		appsDir = filepath.Join(tmpDir, "applications")
		Expect(os.MkdirAll(appsDir, 0755)).To(Succeed())

		write := func(name, content string) {
			Expect(os.WriteFile(filepath.Join(appsDir, name), []byte(content), 0644)).To(Succeed())
		}
		write("vlc.desktop", "[Desktop Entry]\nName=VLC media player\nIcon=vlc\nExec=vlc %U\n")
		write("gimp.desktop", "[Desktop Entry]\nName=GIMP\nIcon=gimp\nExec=gimp-bin\n")
		write("xsane.desktop", "[Desktop Entry]\nName=XSane\nIcon=xsane\nExec=xsane\n")

		cfg, err := config.LoadWithRC(filepath.Join(tmpDir, "icond.rc"))
		Expect(err).NotTo(HaveOccurred())

		loop = icons.NewLoop()
		loop.Start()

		cache = icons.NewCacheWithProvider(loop, cfg, func() icons.ThemeProvider {
			return themeStub{}
		})

		ix = index.New("en_US", func() []string { return []string{appsDir} })
		ix.Rebuild()

		// gimp installs its descriptor under a name the direct token
		// lookup would never try.
		mapper = pkgdb.NewMapper(queryStub{files: map[string][]string{
			"gimp-app": {
				"/usr/local/bin/gimp",
				filepath.Join(appsDir, "gimp.desktop"),
			},
		}}, 2, nil)
		mapper.Rebuild()

		curated := CuratedTable{
			"vlc":   {Name: "VLC", Icon: "vlc-curated"},
			"xsane": {Name: "XSane Scanner"},
		}
		resolver = New(curated, ix, mapper, cache)
	})

	AfterEach(func() {
		loop.Stop()
		os.RemoveAll(tmpDir)
	})

	Describe("Label", func() {
		It("should prefer the curated name", func() {
			Expect(resolver.Label("vlc")).To(Equal("VLC"))
		})

		It("should use the mapped descriptor's name", func() {
			Expect(resolver.Label("gimp-app")).To(Equal("GIMP"))
		})

		It("should use a direct token match", func() {
			Expect(resolver.Label("vlc.desktop")).To(Equal("VLC media player"))
		})

		It("should fall back on the package name", func() {
			Expect(resolver.Label("obscure-daemon")).To(Equal("obscure-daemon"))
		})
	})

	Describe("ResolveSync", func() {
		It("should resolve the curated icon", func() {
			var (
				label string
				icon  *icons.CachedIcon
			)
			loop.Do(func() {
				label, icon = resolver.ResolveSync("vlc", 32)
			})
			Expect(label).To(Equal("VLC"))
			Expect(icon).NotTo(BeNil())
			Expect(icon.Name).To(Equal("vlc-curated"))
		})

		It("should fill a curated gap from the index", func() {
			// Curated gives the label, the descriptor supplies the icon.
			var icon *icons.CachedIcon
			loop.Do(func() {
				_, icon = resolver.ResolveSync("xsane", 32)
			})
			Expect(icon).NotTo(BeNil())
			Expect(icon.Name).To(Equal("xsane"))
		})

		It("should materialize the fallback for unknown packages", func() {
			var (
				label string
				icon  *icons.CachedIcon
			)
			loop.Do(func() {
				label, icon = resolver.ResolveSync("obscure-daemon", 32)
			})
			Expect(label).To(Equal("obscure-daemon"))
			Expect(icon).NotTo(BeNil())
			Expect(icon.Name).To(Equal("package-x-generic"))
		})
	})

	Describe("ResolveAsync", func() {
		It("should deliver the result on the privileged loop", func() {
			var (
				label  string
				icon   *icons.CachedIcon
				onLoop bool
			)
			done := make(chan struct{})
			resolver.ResolveAsync("vlc", 32, func(l string, ic *icons.CachedIcon) {
				label = l
				icon = ic
				onLoop = loop.OnLoop()
				close(done)
			})

			Eventually(done, 5*time.Second).Should(BeClosed())
			Expect(label).To(Equal("VLC"))
			Expect(icon).NotTo(BeNil())
			Expect(onLoop).To(BeTrue())
		})

		It("should deliver to every concurrent waiter", func() {
			const waiters = 8

			var (
				mu     sync.Mutex
				labels []string
			)
			var wg sync.WaitGroup
			wg.Add(waiters)

			for i := 0; i < waiters; i++ {
				go func() {
					resolver.ResolveAsync("gimp-app", 24, func(l string, _ *icons.CachedIcon) {
						mu.Lock()
						labels = append(labels, l)
						mu.Unlock()
						wg.Done()
					})
				}()
			}

			finished := make(chan struct{})
			go func() {
				wg.Wait()
				close(finished)
			}()

			Eventually(finished, 5*time.Second).Should(BeClosed())
			Expect(labels).To(HaveLen(waiters))
			for _, l := range labels {
				Expect(l).To(Equal("GIMP"))
			}
		})
	})
})

var _ = Describe("NewRuntime", func() {
	Context("when the package map is disabled by environment", func() {
		var (
			tmpDir string
			loop   *icons.Loop
			rt     *Runtime
		)

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "icond-runtime-test-*")
			Expect(err).NotTo(HaveOccurred())

			appsDir := filepath.Join(tmpDir, "applications")
			Expect(os.MkdirAll(appsDir, 0755)).To(Succeed())
			entry := "[Desktop Entry]\nName=Quark Editor\nIcon=quark-editor\nExec=quark-editor %F\n"
			Expect(os.WriteFile(filepath.Join(appsDir, "quark-editor.desktop"), []byte(entry), 0644)).To(Succeed())

			// The rc file contributes the fixture directory to the scan set.
			rcPath := filepath.Join(tmpDir, "icond.rc")
			Expect(os.WriteFile(rcPath, []byte(appsDir+"\n"), 0644)).To(Succeed())

			Expect(os.Setenv("STATION_DISABLE_PKG_MAP", "1")).To(Succeed())

			cfg, err := config.LoadWithRC(rcPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.DisablePkgMap()).To(BeTrue())

			loop = icons.NewLoop()
			loop.Start()

			rt, err = NewRuntime(cfg, loop)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			rt.Close()
			loop.Stop()
			os.Unsetenv("STATION_DISABLE_PKG_MAP")
			os.RemoveAll(tmpDir)
		})

		It("should not build a package mapper", func() {
			Expect(rt.Mapper).To(BeNil())
		})

		It("should still resolve through the remaining chain", func() {
			Expect(rt.Index.WaitReady(5 * time.Second)).To(BeTrue())

			Expect(rt.Resolver.Label("quark-editor")).To(Equal("Quark Editor"))
			Expect(rt.Resolver.Label("zz-unmapped-pkg")).To(Equal("zz-unmapped-pkg"))
		})
	})
})

var _ = Describe("LoadCuratedTable", func() {
	It("should load the embedded default", func() {
		table, err := LoadCuratedTable("")
		Expect(err).NotTo(HaveOccurred())
		Expect(table).NotTo(BeEmpty())
		Expect(table).To(HaveKey("vlc"))
	})

	It("should load a custom table from disk", func() {
		tmpDir, err := os.MkdirTemp("", "icond-curated-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tmpDir)

		path := filepath.Join(tmpDir, "curated.yaml")
		custom := "myapp:\n  name: My Application\n  icon: myapp-icon\n"
		Expect(os.WriteFile(path, []byte(custom), 0644)).To(Succeed())

		table, err := LoadCuratedTable(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(table["myapp"].Name).To(Equal("My Application"))
		Expect(table["myapp"].Icon).To(Equal("myapp-icon"))
	})

	It("should fail on a missing file", func() {
		_, err := LoadCuratedTable("/no/such/table.yaml")
		Expect(err).To(HaveOccurred())
	})

	It("should fail on malformed yaml", func() {
		tmpDir, err := os.MkdirTemp("", "icond-curated-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tmpDir)

		path := filepath.Join(tmpDir, "broken.yaml")
		Expect(os.WriteFile(path, []byte("{not: [valid"), 0644)).To(Succeed())

		_, err = LoadCuratedTable(path)
		Expect(err).To(HaveOccurred())
	})
})
