package icons

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Resolution is a resolved package label and icon as reported by the
// daemon. IconPath is empty when not even the fallback icon exists.
type Resolution struct {
	Pkg      string
	Label    string
	IconName string
	IconPath string
	Width    int
	Height   int
}

// Status reports daemon index readiness and cache occupancy.
type Status struct {
	IndexReady  bool
	IndexTokens int
	MapReady    bool
	MapPackages int
	CachedIcons int
}

// Client handles the connection to station-icond
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	socket string
}

const protoVer = "TXT01" // cmdlist protocol, text format, v01

// NewClient creates a new client and connects to the server
func NewClient() (*Client, error) {
	socketPath, err := getSocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}

	// Send header
	if _, err := conn.Write([]byte(protoVer)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send header: %w", err)
	}

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		socket: socketPath,
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Resolve asks the daemon for a package's label and icon at a pixel size.
func (c *Client) Resolve(pkg string, size int) (*Resolution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("resolve", `"`+pkg, strconv.Itoa(size)); err != nil {
		return nil, err
	}

	attrs, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return nil, fmt.Errorf("server error: %s", errMsg)
	}

	return &Resolution{
		Pkg:      attrs["pkg"],
		Label:    attrs["label"],
		IconName: attrs["icon"],
		IconPath: attrs["icon-path"],
		Width:    atoi(attrs["icon-width"]),
		Height:   atoi(attrs["icon-height"]),
	}, nil
}

// Label asks the daemon for a package's display label only.
func (c *Client) Label(pkg string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("label", `"`+pkg); err != nil {
		return "", err
	}

	attrs, err := c.readResponse()
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return "", fmt.Errorf("server error: %s", errMsg)
	}

	return attrs["label"], nil
}

// SetLang switches the daemon's locale for localized display names.
func (c *Client) SetLang(locale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("lang", `"`+locale); err != nil {
		return err
	}
	return c.expectOK()
}

// Reindex triggers a rebuild of both background indices.
func (c *Client) Reindex() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("reindex"); err != nil {
		return err
	}
	return c.expectOK()
}

// ClearCache clears the daemon's icon cache wholesale.
func (c *Client) ClearCache() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("0cache"); err != nil {
		return err
	}
	return c.expectOK()
}

// Status reads the daemon's readiness and cache occupancy.
func (c *Client) Status() (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("status"); err != nil {
		return nil, err
	}

	attrs, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return nil, fmt.Errorf("server error: %s", errMsg)
	}

	return &Status{
		IndexReady:  attrs["index-ready"] == "t",
		IndexTokens: atoi(attrs["index-tokens"]),
		MapReady:    attrs["map-ready"] == "t",
		MapPackages: atoi(attrs["map-packages"]),
		CachedIcons: atoi(attrs["cached-icons"]),
	}, nil
}

// SendCommand sends a raw command to the server. Read the reply with
// ReadResponse; the typed methods are built on the same path.
func (c *Client) SendCommand(cmdName string, args []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(cmdName, args...)
}

// send writes arguments through the value grammar, then the command word.
// Caller holds the mutex.
func (c *Client) send(cmdName string, args ...string) error {
	for _, arg := range args {
		formatted := FormatArgument(arg)
		if _, err := fmt.Fprintf(c.conn, "%s\n", formatted); err != nil {
			return fmt.Errorf("failed to send argument: %w", err)
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", cmdName); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	return nil
}

// FormatArgument formats an argument according to its type
func FormatArgument(arg string) string {
	arg = strings.TrimSpace(arg)

	// If starts with ", it's a string (keep prefix)
	if strings.HasPrefix(arg, `"`) {
		return arg
	}

	// Check for boolean literals
	if arg == "t" || arg == "f" {
		return arg
	}

	// Check if it's numeric (all digits)
	if _, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return arg
	}

	// Default: treat as string (add prefix)
	return `"` + arg
}

// ReadResponse reads one raw attrs block. Pairs with SendCommand.
func (c *Client) ReadResponse() (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readResponse()
}

func (c *Client) expectOK() error {
	attrs, err := c.readResponse()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return fmt.Errorf("server error: %s", errMsg)
	}
	return nil
}

// readResponse reads one attrs block, terminated by a blank line.
func (c *Client) readResponse() (map[string]string, error) {
	// Read header
	header := make([]byte, 5)
	if _, err := io.ReadFull(c.reader, header); err != nil {
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}

	attrs := make(map[string]string)
	for {
		line, err := c.reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}

		// End of response marker
		if line == "\n" {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	return attrs, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
