// Command scrollshot captures full-length screenshots of scrollable page
// regions.
//
// Usage:
//
//	scrollshot -url https://example.com -selector "#feed" -out feed.png
//	scrollshot -serve                       # HTTP API
//	scrollshot -mcp                         # MCP tools over stdio
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/scrollshot"
	"github.com/hazyhaar/scrollshot/httpapi"
)

func main() {
	configPath := flag.String("config", "", "path to scrollshot.yaml config file")
	url := flag.String("url", "", "page URL to capture")
	selector := flag.String("selector", "", "CSS selector of the region; empty captures the page")
	format := flag.String("format", "png", "output format: png, jpeg, pdf")
	quality := flag.Float64("quality", 0, "JPEG quality in [0,1]; 0 uses the default")
	out := flag.String("out", "", "output path; empty derives from the filename template")
	serve := flag.Bool("serve", false, "serve the HTTP API")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, options{
		configPath: *configPath,
		url:        *url,
		selector:   *selector,
		format:     *format,
		quality:    *quality,
		out:        *out,
		serve:      *serve,
		mcp:        *mcpMode,
	}); err != nil {
		logger.Error("scrollshot: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	url        string
	selector   string
	format     string
	quality    float64
	out        string
	serve      bool
	mcp        bool
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg := scrollshot.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := scrollshot.LoadConfigFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	engine := scrollshot.New(cfg, logger)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer engine.Close()

	switch {
	case opts.mcp:
		return runMCP(ctx, engine)
	case opts.serve:
		return runServe(ctx, logger, engine, cfg.Server.Listen)
	case opts.url != "":
		return runCapture(ctx, logger, engine, opts)
	}

	fmt.Fprintln(os.Stderr, "usage: scrollshot -url <url> [-selector <css>] | -serve | -mcp")
	os.Exit(1)
	return nil
}

func runCapture(ctx context.Context, logger *slog.Logger, engine *scrollshot.Engine, opts options) error {
	out, err := engine.Capture(ctx, scrollshot.Request{
		URL:      opts.url,
		Selector: opts.selector,
		Format:   opts.format,
		Quality:  opts.quality,
	})
	if err != nil {
		ce := scrollshot.Classify(err)
		fmt.Fprintln(os.Stderr, ce.UserMessage)
		return err
	}

	saver := &fileSaver{dir: ".", path: opts.out}
	path, err := saver.Save(ctx, out)
	if err != nil {
		return err
	}
	logger.Info("scrollshot: saved", "path", path, "bytes", len(out.Bytes))
	fmt.Println(path)
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, engine *scrollshot.Engine, listen string) error {
	api := httpapi.New(engine, logger)
	srv := &http.Server{Addr: listen, Handler: api.Router()}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("scrollshot: http api listening", "addr", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runMCP(ctx context.Context, engine *scrollshot.Engine) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "scrollshot",
		Version: "1.0.0",
	}, nil)
	engine.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// fileSaver writes artifacts to disk. path, when set, wins over the
// artifact's own filename.
type fileSaver struct {
	dir  string
	path string
}

var _ scrollshot.Saver = (*fileSaver)(nil)

func (f *fileSaver) Save(_ context.Context, out *scrollshot.Output) (string, error) {
	path := f.path
	if path == "" {
		path = filepath.Join(f.dir, out.Filename)
	}
	if err := os.WriteFile(path, out.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return path, nil
}
