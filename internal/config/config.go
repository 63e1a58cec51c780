package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string            `yaml:"env" env:"ENV" env-default:"local"`
	HTTP        HTTPConfig        `yaml:"http"`
	FileStorage FileStorageConfig `yaml:"file_storage"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Auth        AuthConfig        `yaml:"auth"`
}

type HTTPConfig struct {
	Host    string        `yaml:"host"`
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type FileStorageConfig struct {
	BaseDir string `yaml:"base_dir" env-default:"./uploads"`
	BaseURL string `yaml:"base_url" env-default:"http://localhost:8080/uploads"`
	MaxSize int64  `yaml:"max_size" env-default:"10485760"`
}

// IngestionConfig политика приема изображений
type IngestionConfig struct {
	MaxAssets         int           `yaml:"max_assets" env-default:"10"`
	AllowMultiple     bool          `yaml:"allow_multiple" env-default:"true"`
	DefaultCategory   string        `yaml:"default_category" env-default:"training"`
	AllowLibrary      bool          `yaml:"allow_library" env-default:"true"`
	AllowCamera       bool          `yaml:"allow_camera" env-default:"true"`
	PermissionTTL     time.Duration `yaml:"permission_ttl" env-default:"5m"`
	SessionTTL        time.Duration `yaml:"session_ttl" env-default:"30m"`
	Transfer          string        `yaml:"transfer" env-default:"simulated"`
	TransferSteps     int           `yaml:"transfer_steps" env-default:"10"`
	TransferStepDelay time.Duration `yaml:"transfer_step_delay" env-default:"200ms"`
}

type CatalogConfig struct {
	Locale   string `yaml:"locale" env-default:"es"`
	SeedDemo bool   `yaml:"seed_demo" env-default:"false"`
}

type AuthConfig struct {
	TokenSecret string `yaml:"token_secret" env:"TOKEN_SECRET" env-required:"true"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
