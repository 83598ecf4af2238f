package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lazypower/backscroll/internal/buffer"
	"github.com/lazypower/backscroll/internal/config"
	"github.com/lazypower/backscroll/internal/framestore"
	"github.com/lazypower/backscroll/internal/ocr"
	"github.com/lazypower/backscroll/internal/server"
	"github.com/lazypower/backscroll/internal/textcache"
	"github.com/spf13/cobra"
)

// textDBName is the text cache file inside the storage root.
const textDBName = "textcache.db"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := cfg.ResolveStorageDir()
	if err != nil {
		return fmt.Errorf("resolve storage dir: %w", err)
	}

	store, err := framestore.Open(dir)
	if err != nil {
		return fmt.Errorf("open frame store: %w", err)
	}

	texts, err := textcache.Open(filepath.Join(dir, textDBName))
	if err != nil {
		return fmt.Errorf("open text cache: %w", err)
	}
	defer texts.Close()

	var engine ocr.Engine = ocr.Disabled{}
	if cfg.OCR.Enabled && cfg.OCR.Command != "" {
		engine = ocr.NewCommandEngine(cfg.OCR.Command)
		fmt.Fprintf(os.Stderr, "  ocr: %s\n", cfg.OCR.Command)
	} else {
		fmt.Fprintln(os.Stderr, "  ocr: disabled")
	}

	policy := policyFromConfig(cfg)

	buf, err := buffer.New(store, texts, engine, policy)
	if err != nil {
		return fmt.Errorf("init buffer: %w", err)
	}

	srv := server.New(buf, store, texts, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "backscroll serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  storage: %s\n", dir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}

	// Stops the indexer and forces a final manifest write.
	return buf.Close()
}

// policyFromConfig maps the static file config onto a runtime policy. The
// HTTP policy endpoint can override any of this while the server runs.
func policyFromConfig(cfg config.Config) buffer.Policy {
	p := buffer.DefaultPolicy()
	p.Save.Quality = cfg.Capture.SaveQuality
	p.Save.Thumbnail = cfg.Capture.Thumbnails
	p.Save.ThumbnailWidth = cfg.Capture.ThumbnailWidth
	p.MinimumSpacing = cfg.Capture.MinimumSpacing.Std()
	p.HashThreshold = cfg.Capture.HashThreshold
	p.OCREnabled = cfg.OCR.Enabled
	p.OCRInterval = cfg.OCR.Interval.Std()
	p.OCRQueueDepth = cfg.OCR.QueueDepth
	p.OCRMaxAge = cfg.OCR.MaxAge.Std()
	return p
}
