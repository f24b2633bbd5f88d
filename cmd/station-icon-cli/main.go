package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/softstation/icon-ctld/client/icons"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [args...]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  resolve <pkg> [size]  - Resolve label and icon for a package\n")
	fmt.Fprintf(os.Stderr, "  label <pkg>           - Resolve label only\n")
	fmt.Fprintf(os.Stderr, "  lang <locale>         - Set locale for display names\n")
	fmt.Fprintf(os.Stderr, "  reindex               - Rebuild both indices\n")
	fmt.Fprintf(os.Stderr, "  clear-cache           - Clear the icon cache\n")
	fmt.Fprintf(os.Stderr, "  status                - Show daemon status\n")
	fmt.Fprintf(os.Stderr, "  raw <cmd> [args...]   - Send a raw protocol command\n")
	fmt.Fprintf(os.Stderr, "  interactive           - Interactive mode\n")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	// Create client
	client, err := icons.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := runCommand(client, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runCommand(client *icons.Client, cmd string, args []string) error {
	switch cmd {
	case "resolve":
		if len(args) < 1 {
			return fmt.Errorf("usage: resolve <pkg> [size]")
		}
		size := 32
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid size: %s", args[1])
			}
			size = n
		}
		res, err := client.Resolve(args[0], size)
		if err != nil {
			return err
		}
		printResolution(res)
		return nil

	case "label":
		if len(args) < 1 {
			return fmt.Errorf("usage: label <pkg>")
		}
		label, err := client.Label(args[0])
		if err != nil {
			return err
		}
		fmt.Println(label)
		return nil

	case "lang":
		if len(args) < 1 {
			return fmt.Errorf("usage: lang <locale>")
		}
		return client.SetLang(args[0])

	case "reindex":
		return client.Reindex()

	case "clear-cache":
		return client.ClearCache()

	case "status":
		st, err := client.Status()
		if err != nil {
			return err
		}
		fmt.Printf("index-ready: %v\n", st.IndexReady)
		fmt.Printf("index-tokens: %d\n", st.IndexTokens)
		fmt.Printf("map-ready: %v\n", st.MapReady)
		fmt.Printf("map-packages: %d\n", st.MapPackages)
		fmt.Printf("cached-icons: %d\n", st.CachedIcons)
		return nil

	case "raw":
		if len(args) < 1 {
			return fmt.Errorf("usage: raw <command> [args...]")
		}
		if err := client.SendCommand(args[0], args[1:]); err != nil {
			return err
		}
		attrs, err := client.ReadResponse()
		if err != nil {
			return err
		}
		for key, value := range attrs {
			fmt.Printf("%s: %s\n", key, value)
		}
		if errMsg, ok := attrs["error"]; ok {
			return fmt.Errorf("server error: %s", errMsg)
		}
		return nil

	case "interactive":
		runInteractive(client)
		return nil

	default:
		usage()
		return nil
	}
}

func printResolution(res *icons.Resolution) {
	fmt.Printf("label: %s\n", res.Label)
	if res.IconPath != "" {
		fmt.Printf("icon: %s (%s)\n", res.IconName, res.IconPath)
		if res.Width > 0 {
			fmt.Printf("decoded: %dx%d\n", res.Width, res.Height)
		}
	} else {
		fmt.Println("icon: none")
	}
}

func runInteractive(client *icons.Client) {
	fmt.Println("Interactive mode. Commands: resolve <pkg> [size], label <pkg>, lang <locale>, reindex, clear-cache, status, raw <cmd> [args...], quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := runCommand(client, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}
