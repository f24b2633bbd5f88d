package parser

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseCommand", func() {
	var (
		input    string
		reader   *strings.Reader
		parser   *Parser
		cmd      *Command
		parseErr error
	)

	JustBeforeEach(func() {
		reader = strings.NewReader(input)
		parser, parseErr = NewParser(reader)
		Expect(parseErr).NotTo(HaveOccurred())

		cmd, parseErr = parser.ParseCommand()
		Expect(parseErr).NotTo(HaveOccurred())
	})

	Context("when parsing resolve command with arguments", func() {
		BeforeEach(func() {
			input = `TXT01
"vlc
32
resolve
`
		})

		It("should parse command name correctly", func() {
			Expect(cmd.Name).To(Equal("resolve"))
		})

		It("should parse two arguments", func() {
			Expect(cmd.Args).To(HaveLen(2))
		})

		It("should parse first argument as string vlc", func() {
			Expect(cmd.Args[0].Type).To(Equal(TypeString))
			Expect(cmd.Args[0].Str).To(Equal("vlc"))
		})

		It("should parse second argument as integer 32", func() {
			Expect(cmd.Args[1].Type).To(Equal(TypeInt))
			Expect(cmd.Args[1].Int).To(Equal(int64(32)))
		})
	})

	Context("when parsing label command", func() {
		BeforeEach(func() {
			input = `TXT01
"firefox
label
`
		})

		It("should parse command name correctly", func() {
			Expect(cmd.Name).To(Equal("label"))
		})

		It("should parse one string argument", func() {
			Expect(cmd.Args).To(HaveLen(1))
			Expect(cmd.Args[0].Type).To(Equal(TypeString))
			Expect(cmd.Args[0].Str).To(Equal("firefox"))
		})
	})

	Context("when parsing reindex command without arguments", func() {
		BeforeEach(func() {
			input = `TXT01
reindex
`
		})

		It("should parse command name correctly", func() {
			Expect(cmd.Name).To(Equal("reindex"))
		})

		It("should have no arguments", func() {
			Expect(cmd.Args).To(HaveLen(0))
		})
	})

	Context("when parsing boolean literals", func() {
		BeforeEach(func() {
			input = `TXT01
t
f
status
`
		})

		It("should parse both booleans in order", func() {
			Expect(cmd.Args).To(HaveLen(2))
			Expect(cmd.Args[0].Type).To(Equal(TypeBool))
			Expect(cmd.Args[0].Bool).To(BeTrue())
			Expect(cmd.Args[1].Type).To(Equal(TypeBool))
			Expect(cmd.Args[1].Bool).To(BeFalse())
		})
	})

	Context("when input contains comments and blank lines", func() {
		BeforeEach(func() {
			input = `TXT01
# set locale

"de_DE
lang
`
		})

		It("should skip comments and blanks", func() {
			Expect(cmd.Name).To(Equal("lang"))
			Expect(cmd.Args).To(HaveLen(1))
			Expect(cmd.Args[0].Str).To(Equal("de_DE"))
		})
	})
})

var _ = Describe("NewParser", func() {
	Context("when the header is not TXT", func() {
		It("should reject the stream", func() {
			_, err := NewParser(strings.NewReader("BIN01\nstatus\n"))
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when the stream is empty after the header", func() {
		It("should return EOF from ParseCommand", func() {
			p, err := NewParser(strings.NewReader("TXT01\n"))
			Expect(err).NotTo(HaveOccurred())

			_, err = p.ParseCommand()
			Expect(err).To(Equal(io.EOF))
		})
	})
})

var _ = Describe("ReadAllCommands", func() {
	Context("when the stream holds several commands", func() {
		It("should return them in order", func() {
			input := "TXT01\n\"vlc\n16\nresolve\n\"gimp\nlabel\n0cache\n"
			p, err := NewParser(strings.NewReader(input))
			Expect(err).NotTo(HaveOccurred())

			cmds, err := p.ReadAllCommands()
			Expect(err).NotTo(HaveOccurred())
			Expect(cmds).To(HaveLen(3))
			Expect(cmds[0].Name).To(Equal("resolve"))
			Expect(cmds[1].Name).To(Equal("label"))
			Expect(cmds[2].Name).To(Equal("0cache"))
		})
	})
})
