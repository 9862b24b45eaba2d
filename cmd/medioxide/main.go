package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/pkg/config"
	"github.com/marmos91/medioxide/pkg/filemanager"
	"github.com/marmos91/medioxide/pkg/metrics"
	"github.com/marmos91/medioxide/pkg/server"
)

var version = "dev"

const usage = `medioxide - indexed file store with a raw TCP file server

Usage:
  medioxide <command> [flags]

Commands:
  init      Write a default configuration file
  start     Serve the managed folder
  add       Store a file in the managed folder and index it
  list      Print the index
  verify    Report index entries whose file is missing
  version   Print the version

Run 'medioxide <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "init":
		err = runInit(args)
	case "start":
		err = runStart(args)
	case "add":
		err = runAdd(args)
	case "list":
		err = runList(args)
	case "verify":
		err = runVerify(args)
	case "version":
		fmt.Printf("medioxide %s\n", version)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to write the config file (default: "+config.GetDefaultConfigPath()+")")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	_ = fs.Parse(args)

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.InitConfig(*force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

// loadConfig loads the config and configures the logger from it.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Medioxide %s starting", version)

	metricsResult := config.InitializeMetrics(cfg)

	fm, err := config.CreateFileManager(ctx, cfg, metricsResult.IndexMetrics)
	if err != nil {
		return fmt.Errorf("failed to open served folder: %w", err)
	}

	adapter, err := config.CreateAdapter(cfg, fm, metricsResult.ServerMetrics)
	if err != nil {
		_ = fm.Close()
		return fmt.Errorf("failed to create file server: %w", err)
	}

	srv := server.New(fm, server.Options{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Metrics:         metricsResult.Server,
	})
	if err := srv.AddAdapter(adapter); err != nil {
		_ = fm.Close()
		return err
	}

	logger.Info("Serving %s in %s mode on %s. Press Ctrl+C to stop.",
		fm.Root(), cfg.Adapters.FileServer.Mode, cfg.Adapters.FileServer.Address)

	if err := srv.Serve(ctx); err != nil {
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// openFiles opens the managed folder for a one-shot command.
func openFiles(ctx context.Context, configPath string) (*filemanager.FileManager, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return config.CreateFileManager(ctx, cfg, metrics.NewNoopIndexMetrics())
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	id := fs.String("id", "", "File ID (default: a random UUID)")
	name := fs.String("name", "", "Path inside the served folder (default: the source file name)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: medioxide add [flags] <file>")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("add takes exactly one file")
	}
	source := fs.Arg(0)

	if *id == "" {
		*id = uuid.NewString()
	}
	if *name == "" {
		*name = filepath.Base(source)
	}

	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	ctx := context.Background()
	fm, err := openFiles(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = fm.Close() }()

	stored, err := fm.AddFile(ctx, *id, *name, src)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", *id, stored)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	ctx := context.Background()
	fm, err := openFiles(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = fm.Close() }()

	entries, err := fm.List(ctx)
	if err != nil {
		return err
	}

	var total uint64
	for _, e := range entries {
		size := "missing"
		if info, err := os.Stat(filepath.Join(fm.Root(), filepath.FromSlash(e.Path))); err == nil {
			total += uint64(info.Size())
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Printf("%s\t%s\t%s\n", e.ID, size, e.Path)
	}

	fmt.Printf("%s, %s\n", humanize.Comma(int64(len(entries)))+" file(s)", humanize.Bytes(total))
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	ctx := context.Background()
	fm, err := openFiles(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = fm.Close() }()

	desynced, err := fm.Verify(ctx)
	if err != nil {
		return err
	}

	for _, e := range desynced {
		fmt.Printf("%s\t%s\n", e.ID, e.Path)
	}
	if len(desynced) > 0 {
		return fmt.Errorf("%d of %d indexed file(s) missing from %s", len(desynced), fm.Len(), fm.Root())
	}

	fmt.Printf("All %d indexed file(s) present in %s\n", fm.Len(), fm.Root())
	return nil
}
