// Package config loads tinsel settings with viper: defaults, an optional
// tinsel.json file, then TINSEL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/focus"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/logging"
	"github.com/ayusman/tinsel/internal/media"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/selection"
)

// FileName is the config file looked up in the data dir and the working
// directory.
const FileName = "tinsel.json"

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	WebDir string `mapstructure:"webDir"`
}

// CameraConfig holds capture settings.
type CameraConfig struct {
	ID              int           `mapstructure:"id"`
	MotionThreshold float64       `mapstructure:"motionThreshold"`
	IdleFPS         int           `mapstructure:"idleFPS"`
	ActiveFPS       int           `mapstructure:"activeFPS"`
	IdleAfter       time.Duration `mapstructure:"idleAfter"`
}

// RenderConfig holds render tick settings.
type RenderConfig struct {
	FPS              int     `mapstructure:"fps"`
	DispersionRate   float64 `mapstructure:"dispersionRate"`
	OrbitSensitivity float64 `mapstructure:"orbitSensitivity"`
}

// GestureConfig is the interpreter config plus tracking.
type GestureConfig struct {
	gesture.Config `mapstructure:",squash"`
	LostAfter      int `mapstructure:"lostAfter"`
}

// TrayConfig holds tray settings.
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the full typed configuration.
type Config struct {
	LogLevel  string `mapstructure:"logLevel"`
	LogFormat string `mapstructure:"logFormat"`
	DataDir   string `mapstructure:"dataDir"`
	Mode      string `mapstructure:"mode"`

	Server    ServerConfig         `mapstructure:"server"`
	Camera    CameraConfig         `mapstructure:"camera"`
	Render    RenderConfig         `mapstructure:"render"`
	Detector  detector.Config      `mapstructure:"detector"`
	Gesture   GestureConfig        `mapstructure:"gesture"`
	Focus     focus.Config         `mapstructure:"focus"`
	Rotation  scene.RotationConfig `mapstructure:"rotation"`
	Layout    scene.LayoutConfig   `mapstructure:"layout"`
	Selection selection.Config     `mapstructure:"selection"`
	Media     media.Config         `mapstructure:"media"`
	Tray      TrayConfig           `mapstructure:"tray"`
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}

// DBPath returns the photo catalogue database path.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "tinsel.db")
}

// PhotoDir returns the directory imported photos are copied into.
func (c Config) PhotoDir() string {
	return filepath.Join(c.DataDir, "photos")
}

// DefaultDataDir returns ~/.tinsel, or .tinsel when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tinsel"
	}
	return filepath.Join(home, ".tinsel")
}

// SetDefaults registers a default for every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "console")
	viper.SetDefault("dataDir", DefaultDataDir())
	viper.SetDefault("mode", "pointer")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.webDir", "")

	viper.SetDefault("camera.id", 0)
	viper.SetDefault("camera.motionThreshold", 1.0)
	viper.SetDefault("camera.idleFPS", 5)
	viper.SetDefault("camera.activeFPS", 15)
	viper.SetDefault("camera.idleAfter", "2s")

	viper.SetDefault("render.fps", 60)
	viper.SetDefault("render.dispersionRate", 0.1)
	viper.SetDefault("render.orbitSensitivity", 4.0)

	det := detector.DefaultConfig()
	viper.SetDefault("detector.minConfidence", det.MinConfidence)
	viper.SetDefault("detector.minTrackingConf", det.MinTrackingConf)
	viper.SetDefault("detector.script", "")
	viper.SetDefault("detector.python", "")

	g := gesture.DefaultConfig()
	viper.SetDefault("gesture.openInner", g.OpenInner)
	viper.SetDefault("gesture.openOuter", g.OpenOuter)
	viper.SetDefault("gesture.rotationGain", g.RotationGain)
	viper.SetDefault("gesture.pinchThreshold", g.PinchThreshold)
	viper.SetDefault("gesture.openThreshold", g.OpenThreshold)
	viper.SetDefault("gesture.idleSpin", g.IdleSpin)
	viper.SetDefault("gesture.trigger", string(g.Trigger))
	viper.SetDefault("gesture.lostAfter", gesture.DefaultLostAfter)

	f := focus.DefaultConfig()
	viper.SetDefault("focus.rate", f.Rate)
	viper.SetDefault("focus.distance", f.Distance)
	viper.SetDefault("focus.scale", f.Scale)

	r := scene.DefaultRotationConfig()
	viper.SetDefault("rotation.focusDamping", r.FocusDamping)
	viper.SetDefault("rotation.dispersionDamping", r.DispersionDamping)
	viper.SetDefault("rotation.dispersionDampAbove", r.DispersionDampAbove)

	l := scene.DefaultLayoutConfig()
	viper.SetDefault("layout.height", l.Height)
	viper.SetDefault("layout.radius", l.Radius)
	viper.SetDefault("layout.bottom", l.Bottom)
	viper.SetDefault("layout.spread", l.Spread)
	viper.SetDefault("layout.jitter", l.Jitter)
	viper.SetDefault("layout.photoScale", l.PhotoScale)
	viper.SetDefault("layout.hitRadius", l.HitRadius)

	s := selection.DefaultConfig()
	viper.SetDefault("selection.policy", s.Policy)
	viper.SetDefault("selection.debounce", s.Debounce.String())
	viper.SetDefault("selection.minDispersion", s.MinDispersion)

	m := media.DefaultConfig()
	viper.SetDefault("media.size", m.Size)
	viper.SetDefault("media.format", m.Format)
	viper.SetDefault("media.quality", m.Quality)

	viper.SetDefault("tray.enabled", true)
}

// Load sets defaults, reads the config file and enables environment
// overrides. An explicit file must exist; otherwise a missing tinsel.json
// is not an error.
func Load(file string) error {
	SetDefaults()

	viper.SetEnvPrefix("TINSEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		viper.SetConfigType("json")
		viper.AddConfigPath(".")
		viper.AddConfigPath(viper.GetString("dataDir"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Get decodes the current viper state.
func Get() (Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if _, err := gesture.ParseTrigger(string(c.Gesture.Trigger)); err != nil {
		return Config{}, err
	}
	return c, nil
}
