package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Bitlatte/readnext/internal/api"
	"github.com/Bitlatte/readnext/internal/engine"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/site"
)

const (
	rebuildDebounce = 500 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

var serverPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the site and the reading API locally and watches for changes",
	Long: `The serve command performs an initial build of your site, then starts a local
web server for the output directory and the /api endpoints (related posts,
outlines, reader profiles and interaction events). It watches your content,
layouts and static directories and rebuilds the site and the post catalog on
every change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			appConfig.Server.Port = serverPort
		}

		builder := site.NewBuilder(siteOptions(appConfig), log)
		res, err := builder.Build()
		if err != nil {
			return fmt.Errorf("initial build failed: %w", err)
		}

		be, err := openBackend(appConfig, log, false)
		if err != nil {
			return err
		}
		defer be.close()
		be.engine.SetCatalog(res.Site.ContentItems)

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create file watcher: %w", err)
		}
		defer watcher.Close()

		for _, root := range []string{appConfig.ContentDir, appConfig.LayoutsDir, appConfig.StaticDir} {
			watchTree(watcher, root)
		}
		go watchAndRebuild(watcher, builder, be.engine)

		handler := api.NewHandler(be.engine, log, appConfig.Server.VisitorCookie, appConfig.OutputDir)
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", appConfig.Server.Port),
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			log.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		log.Info("Serving site",
			logger.String("output_dir", appConfig.OutputDir),
			logger.String("url", fmt.Sprintf("http://localhost%s", server.Addr)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	},
}

// watchTree adds root and every directory below it to watcher.
func watchTree(watcher *fsnotify.Watcher, root string) {
	if root == "" {
		return
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		log.Debug("Directory not found, not watching", logger.String("path", root))
		return
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Warn("Error walking directory", logger.String("path", path), logger.Error(err))
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				log.Warn("Failed to watch directory", logger.String("path", path), logger.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("Error setting up watch", logger.String("path", root), logger.Error(err))
	}
}

// watchAndRebuild rebuilds the site and swaps the engine's catalog after
// every burst of file changes. A failed rebuild keeps the previous catalog.
func watchAndRebuild(watcher *fsnotify.Watcher, builder *site.Builder, eng *engine.Engine) {
	var timer *time.Timer
	var building sync.Mutex
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("Change detected", logger.String("path", event.Name), logger.String("op", event.Op.String()))

			// New subdirectories are not watched automatically.
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := watcher.Add(event.Name); err != nil {
					log.Warn("Failed to watch new directory", logger.String("path", event.Name), logger.Error(err))
				}
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(rebuildDebounce, func() {
				building.Lock()
				defer building.Unlock()
				res, err := builder.Build()
				if err != nil {
					log.Error("Rebuild failed", logger.Error(err))
					return
				}
				eng.SetCatalog(res.Site.ContentItems)
				log.Info("Site rebuilt", logger.Int("items", len(res.Site.ContentItems)))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("Watcher error", logger.Error(err))
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func init() {
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 1313, "Port to serve the site on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
