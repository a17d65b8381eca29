package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OCAP2/routemonitor/internal/pipeline"
	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "routemonitor.cfg.json"

// ErrNotFound is returned by Load when no configuration file exists.
// Defaults remain in effect.
var ErrNotFound = errors.New("config file not found")

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds in-memory SQLite backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// WebSocketConfig holds streaming backend settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// NATSConfig holds message bus backend settings
type NATSConfig struct {
	URL           string `json:"url" mapstructure:"url"`
	SubjectPrefix string `json:"subjectPrefix" mapstructure:"subjectPrefix"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// StorageConfig selects and configures the recording backends.
type StorageConfig struct {
	Types         []string
	FlushInterval time.Duration
	BatchSize     int
	Memory        MemoryConfig
	SQLite        SQLiteConfig
	Postgres      DBConfig
	WebSocket     WebSocketConfig
	NATS          NATSConfig
	Influx        InfluxConfig
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// ReceiverConfig holds socket settings shared by both pipelines
type ReceiverConfig struct {
	Host       string
	BufferSize int
	QueueSize  int
	Blocking   bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w in %s", ErrNotFound, configDir)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("logs.maxSizeMB", 50)
	viper.SetDefault("logs.maxBackups", 5)
	viper.SetDefault("logs.maxAgeDays", 14)
	viper.SetDefault("defaultTag", "Track")
	viper.SetDefault("sessionName", "track")
	viper.SetDefault("settingsFile", "./data/pos.ini")

	viper.SetDefault("frame", 3857)
	viper.SetDefault("motion.enabled", true)

	viper.SetDefault("receiver.host", "127.0.0.1")
	viper.SetDefault("receiver.bufferSize", 65536)
	viper.SetDefault("receiver.queueSize", 1024)
	viper.SetDefault("receiver.blocking", false)

	viper.SetDefault("pipelines.plane.port", pipeline.PlanePort)
	viper.SetDefault("pipelines.plane.followsCamera", true)
	viper.SetDefault("pipelines.target.port", pipeline.TargetPort)
	viper.SetDefault("pipelines.target.followsCamera", false)

	viper.SetDefault("trace.capacity", pipeline.DefaultCapacity)
	viper.SetDefault("trace.altitude", pipeline.DefaultTraceAltitude)
	viper.SetDefault("trace.overflow", string(pipeline.OverflowReset))
	viper.SetDefault("marker.altitude", pipeline.DefaultMarkerAltitude)

	viper.SetDefault("camera.focus", string(pipeline.FocusLive))
	viper.SetDefault("camera.fixedLon", pipeline.DefaultFixedFocal.Longitude)
	viper.SetDefault("camera.fixedLat", pipeline.DefaultFixedFocal.Latitude)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "routemonitor")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "routemonitor")
	viper.SetDefault("influx.bucket", "track_data")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "1s")
	viper.SetDefault("storage.batchSize", 500)
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./routemonitor.db")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.nats.url", "nats://localhost:4222")
	viper.SetDefault("storage.nats.subjectPrefix", "routemonitor")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "routemonitor")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.addr", "127.0.0.1:9102")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "./routemonitor.status.json")
}

// Set overrides a config value, taking precedence over the file.
func Set(key string, value any) {
	viper.Set(key, value)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetPipelineConfig builds the configuration of one pipeline.
func GetPipelineConfig(role core.Role) pipeline.Config {
	prefix := "pipelines." + role.String() + "."
	cfg := pipeline.DefaultConfig(role, viper.GetInt(prefix+"port"), viper.GetBool(prefix+"followsCamera"))
	cfg.Capacity = viper.GetInt("trace.capacity")
	cfg.TraceAltitude = viper.GetFloat64("trace.altitude")
	cfg.MarkerAltitude = viper.GetFloat64("marker.altitude")
	cfg.Overflow = pipeline.OverflowPolicy(strings.ToLower(viper.GetString("trace.overflow")))
	cfg.Focus = pipeline.FocusStrategy(strings.ToLower(viper.GetString("camera.focus")))
	cfg.FixedFocal = core.GeoPoint{
		Longitude: viper.GetFloat64("camera.fixedLon"),
		Latitude:  viper.GetFloat64("camera.fixedLat"),
	}
	return cfg
}

// GetReceiverConfig returns the socket settings.
func GetReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Host:       viper.GetString("receiver.host"),
		BufferSize: viper.GetInt("receiver.bufferSize"),
		QueueSize:  viper.GetInt("receiver.queueSize"),
		Blocking:   viper.GetBool("receiver.blocking"),
	}
}

// GetStorageConfig returns the storage settings.
func GetStorageConfig() StorageConfig {
	var types []string
	for _, t := range strings.Split(viper.GetString("storage.type"), ",") {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			types = append(types, t)
		}
	}

	return StorageConfig{
		Types:         types,
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		BatchSize:     viper.GetInt("storage.batchSize"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Postgres: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
		NATS: NATSConfig{
			URL:           viper.GetString("storage.nats.url"),
			SubjectPrefix: viper.GetString("storage.nats.subjectPrefix"),
		},
		Influx: GetInfluxConfig(),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
