package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"storyweave/logger"
)

const (
	StoryBackendFile  = "file"
	StoryBackendMongo = "mongo"

	MediaBackendDisk  = "disk"
	MediaBackendMinio = "minio"
)

// Server is the configuration of the story server.
type Server struct {
	Addr           string `env:"HTTP_ADDR" env-default:":3000"`
	MaterialsDir   string `env:"MATERIALS_DIR" env-default:"materials"`
	StoryBackend   string `env:"STORY_BACKEND" env-default:"file" env-description:"file or mongo"`
	MediaBackend   string `env:"MEDIA_BACKEND" env-default:"disk" env-description:"disk or minio"`
	UploadMaxBytes int64  `env:"UPLOAD_MAX_BYTES" env-default:"104857600"`
	Logger         logger.Config
	Mongo          Mongo
	Minio          Minio
	Timeouts       Timeouts
}

type Timeouts struct {
	Read     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"60s"`
	Header   time.Duration `env:"HTTP_HEADER_TIMEOUT" env-default:"5s"`
	Write    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"120s"`
	Idle     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	Shutdown time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Mongo struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DATABASE" env-default:"storyweave"`
	StoryID  string `env:"MONGO_STORY_ID" env-default:"default"`
}

type Minio struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"materials"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	Prefix   string `env:"REDIS_PREFIX" env-default:"storyweave:"`
}

// Client configures storyctl. ServerURL selects the remote variant; without
// it the story lives in local storage.
type Client struct {
	ServerURL   string        `env:"STORYWEAVE_SERVER"`
	DataDir     string        `env:"STORYWEAVE_DATA" env-default:".storyweave"`
	HTTPTimeout time.Duration `env:"STORYWEAVE_HTTP_TIMEOUT" env-default:"30s"`
	Logger      logger.Config
	Mongo       Mongo
	Redis       Redis
}

// Load reads the server configuration from the environment and an optional .env file.
func Load() (*Server, error) {
	_ = godotenv.Load()

	var cfg Server
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read server config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Server) validate() error {
	switch c.StoryBackend {
	case StoryBackendFile:
	case StoryBackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("STORY_BACKEND=mongo requires MONGO_URI")
		}
	default:
		return fmt.Errorf("unknown STORY_BACKEND %q", c.StoryBackend)
	}
	switch c.MediaBackend {
	case MediaBackendDisk:
	case MediaBackendMinio:
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("MEDIA_BACKEND=minio requires MINIO_ENDPOINT")
		}
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.MediaBackend)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// LoadClient reads the storyctl configuration.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	var cfg Client
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read client config: %w", err)
	}
	return &cfg, nil
}
