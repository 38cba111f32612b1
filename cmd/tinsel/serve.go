package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/tinsel/internal/app"
	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/config"
	"github.com/ayusman/tinsel/internal/control"
	"github.com/ayusman/tinsel/internal/gallery"
	"github.com/ayusman/tinsel/internal/server"
	"github.com/ayusman/tinsel/internal/store"
	"github.com/ayusman/tinsel/internal/telemetry"
	"github.com/ayusman/tinsel/internal/tray"
)

func serveCommand() *cobra.Command {
	var noTray bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the photo tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noTray {
				cfg.Tray.Enabled = false
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "Run without the system tray menu")
	return cmd
}

// sessionConfig maps loaded settings onto a session config.
func sessionConfig(cfg config.Config, st *store.Store, preview *capture.Preview, metrics *telemetry.Metrics) app.Config {
	return app.Config{
		Store:            st,
		CameraID:         cfg.Camera.ID,
		Preview:          preview,
		MotionThreshold:  cfg.Camera.MotionThreshold,
		IdleFPS:          cfg.Camera.IdleFPS,
		ActiveFPS:        cfg.Camera.ActiveFPS,
		IdleAfter:        cfg.Camera.IdleAfter,
		RenderFPS:        cfg.Render.FPS,
		DispersionRate:   cfg.Render.DispersionRate,
		OrbitSensitivity: cfg.Render.OrbitSensitivity,
		Detector:         cfg.Detector,
		Gesture:          cfg.Gesture.Config,
		LostAfter:        cfg.Gesture.LostAfter,
		Focus:            cfg.Focus,
		Rotation:         cfg.Rotation,
		Layout:           cfg.Layout,
		Selection:        cfg.Selection,
		Metrics:          metrics,
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	mode, err := control.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	metrics, err := telemetry.New()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	hub := server.NewSceneHub(metrics)
	preview := capture.NewPreview()

	sess, err := app.New(sessionConfig(cfg, st, preview, metrics), hub)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.LoadGallery(); err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}

	webDir := cfg.Server.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.Info().Str("dir", webDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Importer:  gallery.NewImporter(st, cfg.PhotoDir()),
		Textures:  cfg.Media,
		Session:   sess,
		Hub:       hub,
		Preview:   preview,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Either loop ending stops the other and the tray.
	errs := make(chan error, 2)
	go func() {
		errs <- sess.Run(ctx)
		cancel()
	}()
	go func() {
		errs <- srv.ListenAndServe(ctx, cfg.Server.Addr)
		cancel()
	}()

	if mode == control.ModeGesture {
		if err := sess.SetMode(mode); err != nil {
			log.Warn().Err(err).Msg("gesture control unavailable, staying in pointer mode")
		}
	}

	if cfg.Tray.Enabled {
		runTray(ctx, cancel, st, sess, browserURL(cfg.Server.Addr))
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	for range 2 {
		if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// runTray shows the tray menu until quit is chosen or ctx ends. It blocks
// and must be called from the main goroutine.
func runTray(ctx context.Context, quit context.CancelFunc, st *store.Store, sess *app.Session, url string) {
	tr := tray.New()
	tr.OnModeChange(sess.SetMode)
	tr.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
		}
	})
	tr.OnQuit(quit)
	tr.TitleFunc(func(id string) string {
		p, err := st.Photos().GetByID(id)
		if err != nil || p == nil || p.Title == "" {
			return id
		}
		return p.Title
	})

	go tr.Watch(ctx, sess.State(), 250*time.Millisecond)
	go func() {
		<-ctx.Done()
		tr.Quit()
	}()
	tr.Run()
}

// browserURL turns a listen address into a local URL.
func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
