package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/softstation/icon-ctld/internal/icons"
	"github.com/softstation/icon-ctld/internal/resolve"
	"github.com/softstation/icon-ctld/parser"
)

// Server handles Unix socket connections and resolution commands
type Server struct {
	listener net.Listener
	runtime  *resolve.Runtime
	running  bool
	mu       sync.RWMutex
}

// NewServer creates a new server instance listening on the configured
// unix socket
func NewServer(rt *resolve.Runtime) (*Server, error) {
	socketPath := rt.Config.UnixSocket()

	// Create directory if needed
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return nil, err
	}

	// Remove existing socket if it exists
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		runtime:  rt,
	}, nil
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return nil
			}
			continue
		}

		go s.handleConnection(conn)
	}
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	log.Printf("[DEBUG] New connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		log.Printf("[ERROR] Failed to create parser: %v", err)
		s.writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			log.Printf("[DEBUG] Connection closed by client")
			break
		}
		if err != nil {
			log.Printf("[ERROR] Parse error: %v", err)
			s.writeError(conn, "parser", "parse error", err.Error())
			continue
		}

		log.Printf("[DEBUG] Executing command: %s with %d args", cmd.Name, len(cmd.Args))
		s.executeCommand(conn, cmd)
	}
}

func (s *Server) executeCommand(conn net.Conn, cmd *parser.Command) {
	switch cmd.Name {
	case "resolve":
		s.handleResolve(conn, cmd)
	case "label":
		s.handleLabel(conn, cmd)
	case "lang":
		s.handleLang(conn, cmd)
	case "reindex":
		s.handleReindex(conn)
	case "0cache":
		s.handleCacheClear(conn)
	case "status":
		s.handleStatus(conn)
	default:
		s.writeError(conn, cmd.Name, "unknown command", "Command not recognized")
	}
}

// handleResolve answers `"pkg [size] resolve` with the display label and
// the materialized icon's name, path and decoded dimensions.
func (s *Server) handleResolve(conn net.Conn, cmd *parser.Command) {
	if len(cmd.Args) == 0 || cmd.Args[0].Type != parser.TypeString {
		s.writeError(conn, "resolve", "invalid argument", "resolve requires a string package name")
		return
	}
	pkg := cmd.Args[0].Str

	size := 32
	if len(cmd.Args) > 1 {
		if cmd.Args[1].Type != parser.TypeInt || cmd.Args[1].Int <= 0 {
			s.writeError(conn, "resolve", "invalid argument", "size must be a positive integer")
			return
		}
		size = int(cmd.Args[1].Int)
	}

	log.Printf("[DEBUG] Resolving package %q at size %d", pkg, size)

	// The server runs on connection goroutines; image materialization is
	// marshaled onto the privileged loop by the async call.
	done := make(chan struct{})
	var (
		label string
		icon  *icons.CachedIcon
	)
	s.runtime.Resolver.ResolveAsync(pkg, size, func(l string, ic *icons.CachedIcon) {
		label = l
		icon = ic
		close(done)
	})
	<-done

	attrs := fmt.Sprintf("cmd: resolve\nstatus: 0\npkg: %s\nlabel: %s\n", pkg, label)
	if icon != nil {
		attrs += fmt.Sprintf("icon: %s\nicon-path: %s\n", icon.Name, icon.Path)
		if icon.Image != nil {
			bounds := icon.Image.Bounds()
			attrs += fmt.Sprintf("icon-width: %d\nicon-height: %d\n", bounds.Dx(), bounds.Dy())
		}
	} else {
		attrs += "icon: \n"
	}
	s.writeResponse(conn, attrs+"\n")
}

func (s *Server) handleLabel(conn net.Conn, cmd *parser.Command) {
	if len(cmd.Args) == 0 || cmd.Args[0].Type != parser.TypeString {
		s.writeError(conn, "label", "invalid argument", "label requires a string package name")
		return
	}
	pkg := cmd.Args[0].Str

	label := s.runtime.Resolver.Label(pkg)
	attrs := fmt.Sprintf("cmd: label\nstatus: 0\npkg: %s\nlabel: %s\n\n", pkg, label)
	s.writeResponse(conn, attrs)
}

func (s *Server) handleLang(conn net.Conn, cmd *parser.Command) {
	if len(cmd.Args) == 0 || cmd.Args[0].Type != parser.TypeString {
		s.writeError(conn, "lang", "missing parameter", "lang command requires a string parameter")
		return
	}
	locale := cmd.Args[0].Str
	s.runtime.Index.SetLocale(locale)

	// Localized names are baked into the index records, so a locale
	// switch means a rebuild.
	tokens := s.runtime.Index.Rebuild()
	log.Printf("[DEBUG] Locale set to %s, reindexed %d tokens", locale, tokens)

	attrs := fmt.Sprintf("cmd: lang\nstatus: 0\nlang: %s\n\n", locale)
	s.writeResponse(conn, attrs)
}

func (s *Server) handleReindex(conn net.Conn) {
	tokens := s.runtime.Index.Rebuild()
	mapped := 0
	if s.runtime.Mapper != nil {
		mapped = s.runtime.Mapper.Rebuild()
	}
	log.Printf("[DEBUG] Reindexed: %d tokens, %d mapped packages", tokens, mapped)

	attrs := fmt.Sprintf("cmd: reindex\nstatus: 0\nindexed: %d\nmapped: %d\n\n", tokens, mapped)
	s.writeResponse(conn, attrs)
}

func (s *Server) handleCacheClear(conn net.Conn) {
	s.runtime.Cache.Loop().Do(s.runtime.Cache.Invalidate)

	attrs := "cmd: 0cache\nstatus: 0\n\n"
	s.writeResponse(conn, attrs)
}

func (s *Server) handleStatus(conn net.Conn) {
	var cached int
	s.runtime.Cache.Loop().Do(func() {
		cached = s.runtime.Cache.Len()
	})

	mapReady, mapped := false, 0
	if s.runtime.Mapper != nil {
		mapReady = s.runtime.Mapper.Ready()
		mapped = s.runtime.Mapper.Count()
	}

	attrs := fmt.Sprintf(
		"cmd: status\nstatus: 0\nindex-ready: %s\nindex-tokens: %d\nmap-ready: %s\nmap-packages: %d\ncached-icons: %d\n\n",
		boolAttr(s.runtime.Index.Ready()), s.runtime.Index.Count(),
		boolAttr(mapReady), mapped, cached,
	)
	s.writeResponse(conn, attrs)
}

func boolAttr(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

// writeResponse writes a response with TXT01 header
func (s *Server) writeResponse(conn net.Conn, response string) {
	log.Printf("[DEBUG] Writing response (length: %d bytes)", len(response))
	header := []byte("TXT01")
	n, err := conn.Write(header)
	if err != nil {
		log.Printf("[ERROR] Failed to write header: %v", err)
		return
	}
	if n != len(header) {
		log.Printf("[ERROR] Partial header write: %d/%d bytes", n, len(header))
		return
	}

	n, err = conn.Write([]byte(response))
	if err != nil {
		log.Printf("[ERROR] Failed to write response body: %v", err)
		return
	}
	log.Printf("[DEBUG] Response written successfully: %d bytes", n)
}

func (s *Server) writeError(conn net.Conn, cmd, errType, desc string) {
	log.Printf("[ERROR] Writing error response: cmd=%s, type=%s, desc=%s", cmd, errType, desc)
	errorMsg := fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\n\n", cmd, errType, desc)
	s.writeResponse(conn, errorMsg)
}
