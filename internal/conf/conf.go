package conf

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
)

// EnvPrefix is the prefix of environment variables visible to ${VAR} placeholders.
const EnvPrefix = "VIDEOMOD_"

// Bootstrap is the root of the configuration file.
type Bootstrap struct {
	Log        *Log        `json:"log"`
	Sampler    *Sampler    `json:"sampler"`
	Classifier *Classifier `json:"classifier"`
	Data       *Data       `json:"data"`
	Cache      *Cache      `json:"cache"`
	Dataset    *Dataset    `json:"dataset"`
	Analyze    *Analyze    `json:"analyze"`
}

type Log struct {
	Level string `json:"level"`
}

type Sampler struct {
	Backend       string `json:"backend"` // ffmpeg | gocv
	FrameInterval int    `json:"frame_interval"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	MaxFrames     int    `json:"max_frames"`
	FFmpegPath    string `json:"ffmpeg_path"`
	FFprobePath   string `json:"ffprobe_path"`
}

type Classifier struct {
	Backend     string          `json:"backend"` // http | grpc | ollama
	Threshold   float64         `json:"threshold"`
	JPEGQuality int             `json:"jpeg_quality"`
	HTTP        *HTTPDetector   `json:"http"`
	GRPC        *GRPCDetector   `json:"grpc"`
	Ollama      *OllamaDetector `json:"ollama"`
}

type HTTPDetector struct {
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
}

// GRPCDetector lists detector replicas; more than one address enables consistent-hash routing.
type GRPCDetector struct {
	Addrs   []string `json:"addrs"`
	Timeout Duration `json:"timeout"`
}

type OllamaDetector struct {
	BaseURL string   `json:"base_url"`
	Model   string   `json:"model"`
	Timeout Duration `json:"timeout"`
}

type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
}

type Database struct {
	Enabled bool    `json:"enabled"`
	Driver  string  `json:"driver"`
	Source  string  `json:"source"`
	Migrate bool    `json:"migrate"`
	Pool    *DBPool `json:"pool"`
}

type DBPool struct {
	MaxOpenConns    int32    `json:"max_open_conns"`
	MinIdleConns    int32    `json:"min_idle_conns"`
	MaxConnLifetime Duration `json:"max_conn_lifetime"`
	MaxConnIdleTime Duration `json:"max_conn_idle_time"`
}

type Redis struct {
	Enabled      bool     `json:"enabled"`
	Addr         string   `json:"addr"`
	Password     string   `json:"password"`
	DB           int      `json:"db"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
}

type Cache struct {
	BloomKey       string   `json:"bloom_key"`
	BloomBits      uint     `json:"bloom_bits"`
	BloomHashFuncs uint     `json:"bloom_hash_funcs"`
	BloomTTL       Duration `json:"bloom_ttl"`
	FrameTTL       Duration `json:"frame_ttl"` // 0 keeps flagged frames forever
	HashType       string   `json:"hash_type"` // phash | ahash | dhash
	MaxDistance    int      `json:"max_distance"`
}

type Dataset struct {
	FrameInterval int    `json:"frame_interval"`
	Format        string `json:"format"` // png | jpeg
}

type Analyze struct {
	Workers int      `json:"workers"`
	Timeout Duration `json:"timeout"`
}

// Duration is a time.Duration that reads "1.5s" style strings (or nanoseconds) from config.
type Duration time.Duration

func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		if value == "" {
			*d = 0
			return nil
		}
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

// Load reads path, resolves ${VAR:default} placeholders from VIDEOMOD_* environment
// variables and fills in defaults.
func Load(path string) (*Bootstrap, func(), error) {
	c := config.New(
		config.WithSource(
			env.NewSource(EnvPrefix),
			file.NewSource(path),
		),
	)
	if err := c.Load(); err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}

	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("scan config %s: %w", path, err)
	}
	bc.SetDefaults()
	return &bc, func() { c.Close() }, nil
}

// SetDefaults fills every unset field. Sampler sizes are only filled when
// absent so an explicit negative still fails sampler validation.
func (bc *Bootstrap) SetDefaults() {
	if bc.Log == nil {
		bc.Log = &Log{}
	}
	if bc.Log.Level == "" {
		bc.Log.Level = "info"
	}

	if bc.Sampler == nil {
		bc.Sampler = &Sampler{}
	}
	s := bc.Sampler
	if s.Backend == "" {
		s.Backend = "ffmpeg"
	}
	if s.FrameInterval == 0 {
		s.FrameInterval = 90
	}
	if s.Width == 0 {
		s.Width = 224
	}
	if s.Height == 0 {
		s.Height = 224
	}
	if s.MaxFrames == 0 {
		s.MaxFrames = 150
	}

	if bc.Classifier == nil {
		bc.Classifier = &Classifier{}
	}
	cl := bc.Classifier
	if cl.Backend == "" {
		cl.Backend = "http"
	}
	if cl.Threshold <= 0 {
		cl.Threshold = 0.7
	}

	if bc.Data == nil {
		bc.Data = &Data{}
	}
	if db := bc.Data.Database; db != nil && db.Driver == "" {
		db.Driver = "postgres"
	}

	if bc.Cache == nil {
		bc.Cache = &Cache{}
	}
	ca := bc.Cache
	if ca.BloomKey == "" {
		ca.BloomKey = "videomod:bloom:frame"
	}
	if ca.BloomBits == 0 {
		ca.BloomBits = 1 << 20 // ~1M bits = 128KB
	}
	if ca.BloomHashFuncs == 0 {
		ca.BloomHashFuncs = 7
	}
	if ca.HashType == "" {
		ca.HashType = "phash"
	}

	if bc.Dataset == nil {
		bc.Dataset = &Dataset{}
	}
	if bc.Dataset.FrameInterval == 0 {
		bc.Dataset.FrameInterval = 30
	}
	if bc.Dataset.Format == "" {
		bc.Dataset.Format = "png"
	}

	if bc.Analyze == nil {
		bc.Analyze = &Analyze{}
	}
	if bc.Analyze.Workers <= 0 {
		bc.Analyze.Workers = 1
	}
}
