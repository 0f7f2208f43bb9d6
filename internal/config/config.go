package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"kairo-keeper/internal/env"

	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - TCP listening address of the control API (e.g. "127.0.0.1:8999")
 * @property {string} socket - Unix socket file name, created under <KairoDir>/run
 * @property {string} mode - gin mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Socket  string `mapstructure:"socket"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" for stdout only
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Release feed configuration
 * @property {string} product - Product name used in asset file names
 * @property {string} binary_name - Executable name inside the archive (without .exe)
 * @property {string} primary_url - Latest-release JSON endpoint
 * @property {string} mirror_url - Fallback latest-release JSON endpoint
 * @property {bool} use_mirror - Download assets through mirror_download_base
 * @property {string} mirror_download_base - Base URL for rebuilt download links
 */
type ReleaseConfig struct {
	Product            string `mapstructure:"product"`
	BinaryName         string `mapstructure:"binary_name"`
	PrimaryURL         string `mapstructure:"primary_url"`
	MirrorURL          string `mapstructure:"mirror_url"`
	UseMirror          bool   `mapstructure:"use_mirror"`
	MirrorDownloadBase string `mapstructure:"mirror_download_base"`
}

type DownloadConfig struct {
	Attempts         int           `mapstructure:"attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type TunnelConfig struct {
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
	IdFlag      string        `mapstructure:"id_flag"`
}

// BinaryConfig is the persisted InstalledBinary.
type BinaryConfig struct {
	Path    string `mapstructure:"path"`
	Version string `mapstructure:"version"`
}

type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Release  ReleaseConfig  `mapstructure:"release"`
	Download DownloadConfig `mapstructure:"download"`
	Tunnel   TunnelConfig   `mapstructure:"tunnel"`
	Binary   BinaryConfig   `mapstructure:"binary"`
	Token    string         `mapstructure:"token"`
}

var ErrNoInstalledBinary = errors.New("no installed binary recorded")

var (
	Config AppConfig
	loaded bool
	mu     sync.Mutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1:8999")
	v.SetDefault("server.socket", "kairo.sock")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(env.KairoDir, "logs", "kairo.log"))
	v.SetDefault("release.product", "frp")
	v.SetDefault("release.binary_name", "frpc")
	v.SetDefault("release.primary_url", "https://api.github.com/repos/fatedier/frp/releases/latest")
	v.SetDefault("release.mirror_url", "")
	v.SetDefault("release.use_mirror", false)
	v.SetDefault("release.mirror_download_base", "")
	v.SetDefault("download.attempts", 3)
	v.SetDefault("download.retry_delay", 1500*time.Millisecond)
	v.SetDefault("download.chunk_size", 32*1024)
	v.SetDefault("download.progress_interval", 500*time.Millisecond)
	v.SetDefault("download.timeout", 10*time.Minute)
	v.SetDefault("tunnel.stop_timeout", 3*time.Second)
	v.SetDefault("tunnel.id_flag", "-p")
	v.SetDefault("binary.path", "")
	v.SetDefault("binary.version", "")
	v.SetDefault("token", "")
}

/**
 * Load application configuration from YAML file and KAIRO_* environment variables
 * @returns {*AppConfig} Loaded configuration
 * @returns {error} Error if the file exists but cannot be parsed
 * @description
 * - Looks for config.yaml in KairoDir, then in the working directory
 * - A missing file is not an error, defaults apply
 * - KAIRO_TUNNEL_STOP_TIMEOUT style variables override file values
 */
func LoadConfig() (*AppConfig, error) {
	return load(viper.GetViper(), env.KairoDir, ".")
}

func load(v *viper.Viper, paths ...string) (*AppConfig, error) {
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("KAIRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	normalize(&cfg)
	return &cfg, nil
}

func normalize(cfg *AppConfig) {
	if cfg.Download.Attempts < 1 {
		cfg.Download.Attempts = 1
	}
	if cfg.Download.ChunkSize <= 0 {
		cfg.Download.ChunkSize = 32 * 1024
	}
	if cfg.Tunnel.StopTimeout <= 0 {
		cfg.Tunnel.StopTimeout = 3 * time.Second
	}
	if cfg.Tunnel.IdFlag != "-t" {
		cfg.Tunnel.IdFlag = "-p"
	}
}

/**
 * Get the process-wide configuration, loading it on first use
 * @returns {*AppConfig} Application configuration
 */
func App() *AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if !loaded {
		if cfg, err := LoadConfig(); err == nil {
			Config = *cfg
		} else {
			v := viper.New()
			setDefaults(v)
			_ = v.Unmarshal(&Config)
			normalize(&Config)
		}
		loaded = true
	}
	return &Config
}

// ReloadConfig re-reads config.yaml and the environment.
func ReloadConfig() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	mu.Lock()
	Config = *cfg
	loaded = true
	mu.Unlock()
	return nil
}

/**
 * Persist the installed binary location and version
 * @param {string} path - Absolute path of the installed executable
 * @param {string} version - Installed version
 * @returns {error} Error if config.yaml cannot be read or written
 * @description
 * - Only binary.path/binary.version are changed in <KairoDir>/config.yaml
 * - Defaults and KAIRO_* variables (KAIRO_TOKEN included) never reach the file
 */
func SaveInstalledBinary(path, version string) error {
	if err := saveBinary(env.KairoDir, path, version); err != nil {
		return err
	}

	mu.Lock()
	Config.Binary.Path = path
	Config.Binary.Version = version
	mu.Unlock()
	return nil
}

func saveBinary(dir, path, version string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	file := filepath.Join(dir, "config.yaml")

	// 只读磁盘上的文件, 不带默认值和环境变量
	v := viper.New()
	v.SetConfigFile(file)
	if _, err := os.Stat(file); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	v.Set("binary.path", path)
	v.Set("binary.version", version)
	return v.WriteConfigAs(file)
}

/**
 * Get the recorded installed binary, if any
 * @returns {BinaryConfig} Recorded binary
 * @returns {error} ErrNoInstalledBinary when nothing is recorded
 */
func InstalledBinary() (BinaryConfig, error) {
	cfg := App()
	mu.Lock()
	defer mu.Unlock()
	if cfg.Binary.Path == "" {
		return BinaryConfig{}, ErrNoInstalledBinary
	}
	return cfg.Binary, nil
}
