package desktop_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/softstation/icon-ctld/internal/desktop"
)

var _ = Describe("ParseFile", func() {
	var (
		tmpDir string
		entry  *desktop.Entry
		err    error
	)

	BeforeEach(func() {
		tmpDir, err = os.MkdirTemp("", "icond-desktop-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeEntry := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	Context("when parsing a complete descriptor", func() {
		BeforeEach(func() {
			path := writeEntry("vlc.desktop", `[Desktop Entry]
Name=VLC media player
Name[de]=VLC Medienspieler
Name[fr_FR]=Lecteur multimédia VLC
Icon=vlc
Exec=/usr/local/bin/vlc --started-from-file %U
TryExec=/usr/local/bin/vlc
`)
			entry, err = desktop.ParseFile(path)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the plain name", func() {
			Expect(entry.Name).To(Equal("VLC media player"))
		})

		It("should parse localized names", func() {
			Expect(entry.Names).To(HaveKeyWithValue("de", "VLC Medienspieler"))
			Expect(entry.Names).To(HaveKeyWithValue("fr_FR", "Lecteur multimédia VLC"))
		})

		It("should parse the icon hint", func() {
			Expect(entry.Icon).To(Equal("vlc"))
		})

		It("should derive the id from the filename", func() {
			Expect(entry.ID()).To(Equal("vlc.desktop"))
		})

		It("should expose id, exec word and tryexec basename as tokens", func() {
			Expect(entry.Tokens()).To(Equal([]string{
				"vlc.desktop",
				"/usr/local/bin/vlc",
				"vlc",
			}))
		})
	})

	Context("when keys live outside the primary group", func() {
		BeforeEach(func() {
			path := writeEntry("app.desktop", `[Desktop Entry]
Name=Real Name
Icon=real-icon
[Desktop Action Other]
Name=Action Name
Icon=action-icon
`)
			entry, err = desktop.ParseFile(path)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should ignore them", func() {
			Expect(entry.Name).To(Equal("Real Name"))
			Expect(entry.Icon).To(Equal("real-icon"))
		})
	})

	Context("when the primary group is missing", func() {
		It("should reject the file", func() {
			path := writeEntry("broken.desktop", "[Some Group]\nName=Nope\n")
			_, err = desktop.ParseFile(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when the file does not exist", func() {
		It("should return the open error", func() {
			_, err = desktop.ParseFile(filepath.Join(tmpDir, "absent.desktop"))
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("LocalizedName", func() {
	entry := &desktop.Entry{
		Name: "Text Editor",
		Names: map[string]string{
			"de":    "Texteditor",
			"fr_FR": "Éditeur de texte",
		},
	}

	It("should prefer the exact locale", func() {
		Expect(entry.LocalizedName("fr_FR")).To(Equal("Éditeur de texte"))
	})

	It("should drop the encoding before probing", func() {
		Expect(entry.LocalizedName("fr_FR.UTF-8")).To(Equal("Éditeur de texte"))
	})

	It("should reduce to the bare language code", func() {
		Expect(entry.LocalizedName("de_AT.ISO8859-15")).To(Equal("Texteditor"))
	})

	It("should fall back on the plain name", func() {
		Expect(entry.LocalizedName("ja_JP")).To(Equal("Text Editor"))
	})

	It("should use the plain name when no locale is set", func() {
		Expect(entry.LocalizedName("")).To(Equal("Text Editor"))
	})
})

var _ = Describe("LocaleProbes", func() {
	It("should emit probes from most to least specific", func() {
		Expect(desktop.LocaleProbes("en_US.UTF-8")).To(Equal([]string{"en_US.UTF-8", "en_US", "en"}))
	})

	It("should not duplicate a bare language code", func() {
		Expect(desktop.LocaleProbes("de")).To(Equal([]string{"de"}))
	})

	It("should return nothing for an empty locale", func() {
		Expect(desktop.LocaleProbes("")).To(BeEmpty())
	})
})
