package pkgcache

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cache", func() {
	var (
		cache        *Cache
		testCacheDir string
	)

	BeforeEach(func() {
		// Create a temporary directory to use as cache directory
		var err error
		testCacheDir, err = os.MkdirTemp("", "icond-pkgcache-test-*")
		Expect(err).NotTo(HaveOccurred())

		cache, err = NewWithCacheDir(testCacheDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cache).NotTo(BeNil())
	})

	AfterEach(func() {
		if cache != nil {
			err := cache.Close()
			Expect(err).NotTo(HaveOccurred())
		}

		// Clean up the temporary directory
		if testCacheDir != "" {
			err := os.RemoveAll(testCacheDir)
			Expect(err).NotTo(HaveOccurred())
		}
	})

	Describe("NewWithCacheDir", func() {
		It("should create the softstation directory in cache", func() {
			Expect(filepath.Join(testCacheDir, "softstation")).To(BeADirectory())
		})

		It("should create the database file", func() {
			dbPath := filepath.Join(testCacheDir, "softstation", "icond.pkg-map")
			Expect(dbPath).To(BeAnExistingFile())
		})
	})

	Describe("Put and Get", func() {
		It("should round-trip a package's descriptor path", func() {
			_, ok := cache.Get("vlc")
			Expect(ok).To(BeFalse())

			err := cache.Put("vlc", "/usr/local/share/applications/vlc.desktop")
			Expect(err).NotTo(HaveOccurred())

			path, ok := cache.Get("vlc")
			Expect(ok).To(BeTrue())
			Expect(path).To(Equal("/usr/local/share/applications/vlc.desktop"))
		})

		It("should overwrite an existing entry", func() {
			Expect(cache.Put("vlc", "/old/vlc.desktop")).To(Succeed())
			Expect(cache.Put("vlc", "/new/vlc.desktop")).To(Succeed())

			path, ok := cache.Get("vlc")
			Expect(ok).To(BeTrue())
			Expect(path).To(Equal("/new/vlc.desktop"))
		})
	})

	Describe("Delete", func() {
		It("should remove an entry", func() {
			Expect(cache.Put("gimp", "/apps/gimp.desktop")).To(Succeed())
			Expect(cache.Delete("gimp")).To(Succeed())

			_, ok := cache.Get("gimp")
			Expect(ok).To(BeFalse())
		})

		It("should tolerate a missing entry", func() {
			Expect(cache.Delete("never-stored")).To(Succeed())
		})
	})

	Describe("All", func() {
		It("should return the whole map", func() {
			Expect(cache.Put("vlc", "/apps/vlc.desktop")).To(Succeed())
			Expect(cache.Put("gimp", "/apps/gimp.desktop")).To(Succeed())

			all := cache.All()
			Expect(all).To(HaveLen(2))
			Expect(all).To(HaveKeyWithValue("vlc", "/apps/vlc.desktop"))
			Expect(all).To(HaveKeyWithValue("gimp", "/apps/gimp.desktop"))
		})

		It("should return an empty map for an empty cache", func() {
			Expect(cache.All()).To(BeEmpty())
		})
	})

	Describe("persistence", func() {
		It("should survive a close and reopen", func() {
			Expect(cache.Put("firefox", "/apps/firefox.desktop")).To(Succeed())
			Expect(cache.Close()).To(Succeed())

			var err error
			cache, err = NewWithCacheDir(testCacheDir)
			Expect(err).NotTo(HaveOccurred())

			path, ok := cache.Get("firefox")
			Expect(ok).To(BeTrue())
			Expect(path).To(Equal("/apps/firefox.desktop"))
		})
	})
})
