// Command rollang-loaderd hosts internal/loaderrpc's Loader service over a
// TCP listener, the out-of-process counterpart to embedding
// internal/loader directly — the same relationship the teacher's cmd/funxy
// has to running a script in-process versus cmd/lsp serving requests over
// a socket.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"google.golang.org/grpc"

	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/config"
	"github.com/rollang/loader/internal/diagnostics"
	"github.com/rollang/loader/internal/loader"
	"github.com/rollang/loader/internal/loaderrpc"
	"github.com/rollang/loader/internal/manifest"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <manifest.json> [addr] [-config path.yaml]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  addr defaults to :50051\n")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if len(os.Args) < 2 || os.Args[1] == "-help" || os.Args[1] == "--help" {
		usage()
		os.Exit(1)
	}

	manifestPath := os.Args[1]
	addr := ":50051"
	cfgPath := ""
	rest := os.Args[2:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-config":
			if i+1 >= len(rest) {
				usage()
				os.Exit(1)
			}
			cfgPath = rest[i+1]
			i++
		default:
			addr = rest[i]
		}
	}

	cfg := config.DefaultConfig()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
			os.Exit(1)
		}
	}

	info, err := os.Stat(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %s\n", err)
		os.Exit(1)
	}
	assemblies, err := m.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building assemblies: %s\n", err)
		os.Exit(1)
	}
	reg := assembly.NewRegistry(assemblies)

	var obs loader.Observer
	if cfg.AuditEnabled {
		store, err := diagnostics.Open(cfg.AuditPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening audit store: %s\n", err)
			os.Exit(1)
		}
		defer store.Close()
		obs = store
	}

	l := loader.New(reg, cfg, obs)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	srv := grpc.NewServer()
	if err := loaderrpc.Register(srv, l); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering loader service: %s\n", err)
		os.Exit(1)
	}

	printBanner(manifestPath, info.Size(), len(assemblies), addr, cfg.AuditEnabled)

	if err := srv.Serve(lis); err != nil {
		fmt.Fprintf(os.Stderr, "Serve error: %s\n", err)
		os.Exit(1)
	}
}

// printBanner logs the daemon's startup summary, colorized only when
// stdout is a real terminal — piping rollang-loaderd's output to a file or
// another process should produce plain text.
func printBanner(manifestPath string, manifestSize int64, assemblyCount int, addr string, auditEnabled bool) {
	colorize := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	line := fmt.Sprintf("loaded %s (%s, %d assemblies) — serving %s on %s",
		manifestPath, humanize.Bytes(uint64(manifestSize)), assemblyCount, loaderrpc.ServiceName, addr)
	if auditEnabled {
		line += " [audit on]"
	}

	if colorize {
		fmt.Printf("\033[32m%s\033[0m\n", line)
	} else {
		fmt.Println(line)
	}
}
