// Package main is the scribe CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/cli"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/config"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/router"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/server"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/storage"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/watcher"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/scribe/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "plan":
		runPlan()
	case "extract":
		runExtract()
	case "import":
		runImport()
	case "gazetteer":
		runGazetteer()
	case "version", "--version", "-v":
		fmt.Printf("scribe version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger, bool) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger, debugMode
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-query planning, gazetteer reloads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("backend", cfg.Router.Backend),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Gazetteer.WatchOrDefault() {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		lexicon := components.Lexicon
		watchSvc = watcher.NewWatcher(cfg.Gazetteer.Sources, func(paths []string) {
			if err := lexicon.Reload(); err != nil {
				logger.Warn("gazetteer reload degraded", zap.Strings("paths", paths), zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	var fileWatch server.FileWatcher
	if watchSvc != nil {
		fileWatch = watchSvc
	}
	srv := server.NewServer(
		components.Orchestrator,
		components.Lexicon,
		fileWatch,
		components.Router.Backend(),
		cfg,
		resolvedConfigPath,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// splitRecent parses a "|"-separated list of recent queries, dropping blanks.
func splitRecent(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, "|") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryContext(character, recent string) *router.QueryContext {
	qctx := &router.QueryContext{CharacterName: strings.TrimSpace(character), RecentQueries: splitRecent(recent)}
	if qctx.CharacterName == "" && len(qctx.RecentQueries) == 0 {
		return nil
	}
	return qctx
}

func printPlanUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: scribe plan [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  scribe plan What does Eldaryth of Regret do?
  scribe plan --character Duskryn --recent "who is Ghul'Vor|what did we loot" what happened next
  scribe plan --server http://localhost:8080 --output json how does divine smite work
`)
}

func runPlan() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = plan in-process)")
	character := fs.String("character", "", "active character name")
	recent := fs.String("recent", "", "recent queries separated by |")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printPlanUsage(fs) }
	_ = fs.Parse(args)

	query := buildQuery(fs.Args())
	if query == "" {
		printPlanUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	qctx := queryContext(*character, *recent)

	var plan *models.QueryPlan
	if *serverURL != "" {
		plan, err = planViaHTTP(*serverURL, query, qctx)
	} else {
		cfg, _, logger, _ := setup(*configPath, *debug)
		defer logger.Sync()
		components, initErr := initializeComponents(context.Background(), cfg, logger)
		if initErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", initErr)
			os.Exit(1)
		}
		defer components.Close()
		plan, err = components.Orchestrator.Plan(context.Background(), query, qctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Plan failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WritePlan(os.Stdout, plan, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExtract() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = extract in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: scribe extract [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	report := &cli.EntityReport{Query: query}
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/entities", map[string]string{"query": query}, http.StatusOK, report); err != nil {
			fmt.Fprintf(os.Stderr, "Extract failed: %v\n", err)
			os.Exit(1)
		}
		report.Query = query
	} else {
		cfg, _, logger, _ := setup(*configPath, *debug)
		defer logger.Sync()
		components, initErr := initializeComponents(context.Background(), cfg, logger)
		if initErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", initErr)
			os.Exit(1)
		}
		defer components.Close()
		report.Entities, report.EntityResults = components.Orchestrator.ExtractEntities(context.Background(), query)
	}
	if err := cli.WriteEntities(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger, _ := setup(*configPath, false)
	defer logger.Sync()

	files := cfg.Knowledge.Files
	if fs.NArg() > 0 {
		files = fs.Args()
	}
	if len(files) == 0 {
		fmt.Println("Usage: scribe import [flags] [knowledge.yaml ...]  (defaults to knowledge.files)")
		os.Exit(1)
	}
	bundle, err := knowledge.LoadBundle(files...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load knowledge: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Import(ctx, bundle); err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	sections, names, err := store.Counts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d section(s) and %d name(s) into %s\n", sections, names, cfg.Storage.DatabasePath)
}

func runGazetteer() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: scribe gazetteer <add|remove|list|reload> [path]")
		fmt.Println("  scribe gazetteer add <path>     Add a gazetteer source file")
		fmt.Println("  scribe gazetteer remove <path>  Remove a gazetteer source file")
		fmt.Println("  scribe gazetteer list           List sources and entry count")
		fmt.Println("  scribe gazetteer reload         Rebuild the gazetteer")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("gazetteer", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])

	var out struct {
		Status  string   `json:"status"`
		Path    string   `json:"path"`
		Entries int      `json:"entries"`
		Sources []string `json:"sources"`
		Error   string   `json:"error"`
	}
	var err error
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: scribe gazetteer add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		err = postJSON(*serverURL+"/api/v1/gazetteer/sources", map[string]string{"path": path}, http.StatusCreated, &out)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: scribe gazetteer remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		err = doJSON(http.MethodDelete, *serverURL+"/api/v1/gazetteer/sources?path="+url.QueryEscape(path), nil, http.StatusOK, &out)
	case "list":
		err = doJSON(http.MethodGet, *serverURL+"/api/v1/gazetteer", nil, http.StatusOK, &out)
	case "reload":
		err = postJSON(*serverURL+"/api/v1/gazetteer/reload", struct{}{}, http.StatusOK, &out)
	default:
		fmt.Printf("Unknown gazetteer subcommand: %s\n", sub)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	switch sub {
	case "list":
		for _, s := range out.Sources {
			fmt.Println(s)
		}
		fmt.Printf("entries: %d\n", out.Entries)
	default:
		if out.Path != "" {
			fmt.Printf("%s: %s (entries: %d)\n", out.Status, out.Path, out.Entries)
		} else {
			fmt.Printf("%s (entries: %d)\n", out.Status, out.Entries)
		}
		if out.Error != "" {
			fmt.Printf("warning: %s\n", out.Error)
		}
	}
}

func planViaHTTP(serverURL, query string, qctx *router.QueryContext) (*models.QueryPlan, error) {
	body := map[string]interface{}{"query": query}
	if qctx != nil {
		body["context"] = qctx
	}
	var plan models.QueryPlan
	if err := postJSON(serverURL+"/api/v1/plan", body, http.StatusOK, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func postJSON(endpoint string, body interface{}, want int, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return doJSON(http.MethodPost, endpoint, data, want, out)
}

func doJSON(method, endpoint string, body []byte, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`scribe - Query planner for tabletop campaign knowledge

Usage:
  scribe server [flags]                     Start the HTTP server
  scribe plan [flags] <query>               Plan which knowledge tools a query needs
  scribe extract [flags] <query>            Show recognised entities and where they live
  scribe import [flags] [file ...]          Import knowledge files into the database
  scribe gazetteer <add|remove|list|reload> Manage gazetteer sources on a running server
  scribe version                            Show version
  scribe help                               Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/scribe/config.yaml)
  --debug            Enable debug logging

Plan Flags:
  --config string     Config file path (for in-process planning)
  --server string     Server URL. Empty (default) plans in-process.
  --character string  Active character name
  --recent string     Recent queries separated by |
  --output string     Output format: text or json (default: text)

Extract Flags:
  --config string    Config file path
  --server string    Server URL. Empty (default) extracts in-process.
  --output string    Output format: text or json (default: text)

Gazetteer Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  scribe server
  scribe plan What does Eldaryth of Regret do?
  scribe plan --output json "how does divine smite work"
  scribe extract who is the hollow king
  scribe import campaign/duskryn.yaml
  scribe gazetteer add ./lexicon/npcs.yaml`)
}
