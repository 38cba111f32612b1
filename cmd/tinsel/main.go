// tinsel - gesture-driven photo tree
//
// Serves a 3D tree of photos to the browser. Photos can be focused with the
// mouse, or with hand gestures seen by the webcam:
//
//	Open hand   - Scatter the photos
//	Fist        - Gather them back onto the tree
//	Move hand   - Spin the tree
//	Pinch       - Pull the photo under the cursor into view
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/tinsel/internal/config"
	"github.com/ayusman/tinsel/internal/logging"
)

var configFile string

func main() {
	cmd := &cobra.Command{
		Use:   "tinsel",
		Short: "Gesture-driven photo tree",
		Long: `tinsel - Gesture-driven photo tree

Serves a tree of photos that can be spun, scattered and focused with the
mouse or with hand gestures in front of the webcam.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(configFile); err != nil {
				return err
			}
			cfg, err := config.Get()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging(), os.Stderr)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ./tinsel.json or ~/.tinsel/tinsel.json)")

	cmd.AddCommand(serveCommand(), importCommand(), photosCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("tinsel failed")
		stop()
		os.Exit(1)
	}
}

// loadConfig decodes the config loaded by the root command and makes sure
// the data dir exists.
func loadConfig() (config.Config, error) {
	cfg, err := config.Get()
	if err != nil {
		return config.Config{}, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return config.Config{}, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}
