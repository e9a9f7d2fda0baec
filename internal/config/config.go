package config

import (
	"time"

	"backend-pathgreen/internal/emission"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	APIKey        string `mapstructure:"API_KEY"`
	CORSOrigins   string `mapstructure:"CORS_ORIGINS"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogPretty     bool   `mapstructure:"LOG_PRETTY"`

	TickInterval  time.Duration `mapstructure:"TICK_INTERVAL"`
	ReplaySeed    int64         `mapstructure:"REPLAY_SEED"`
	ReplayEnabled bool          `mapstructure:"REPLAY_ENABLED"`
	IngestQueue   int           `mapstructure:"INGEST_QUEUE_SIZE"`
	AlertCapacity int           `mapstructure:"ALERT_CAPACITY"`

	ClientQueueSize   int           `mapstructure:"CLIENT_QUEUE_SIZE"`
	HeartbeatInterval time.Duration `mapstructure:"HEARTBEAT_INTERVAL"`
	HeartbeatMultiple int           `mapstructure:"HEARTBEAT_TIMEOUT_MULTIPLE"`
	ChatTimeout       time.Duration `mapstructure:"CHAT_TIMEOUT"`

	SinkQueueSize     int           `mapstructure:"SINK_QUEUE_SIZE"`
	SinkBatchSize     int           `mapstructure:"SINK_BATCH_SIZE"`
	SinkFlushInterval time.Duration `mapstructure:"SINK_FLUSH_INTERVAL"`

	EmissionBaseGPerKm      float64       `mapstructure:"EMISSION_BASE_G_PER_KM"`
	EmissionLoadPenalty     float64       `mapstructure:"EMISSION_LOAD_PENALTY_G_PER_TONNE"`
	EmissionOptimalMinKmh   float64       `mapstructure:"EMISSION_OPTIMAL_MIN_KMH"`
	EmissionOptimalMaxKmh   float64       `mapstructure:"EMISSION_OPTIMAL_MAX_KMH"`
	EmissionLowSpeedPct     float64       `mapstructure:"EMISSION_LOW_SPEED_PENALTY_PCT"`
	EmissionHighSpeedPct    float64       `mapstructure:"EMISSION_HIGH_SPEED_PENALTY_PCT"`
	EmissionIdleGPerSecond  float64       `mapstructure:"EMISSION_IDLE_G_PER_S"`
	EmissionIdleChargeCap   time.Duration `mapstructure:"EMISSION_IDLE_CHARGE_CAP"`
	EmissionMaxTickGap      time.Duration `mapstructure:"EMISSION_MAX_TICK_GAP"`
	EmissionIdleWarning     time.Duration `mapstructure:"EMISSION_IDLE_WARNING"`
	EmissionIdleCritical    time.Duration `mapstructure:"EMISSION_IDLE_CRITICAL"`
	EmissionSpikeGPerKm     float64       `mapstructure:"EMISSION_SPIKE_G_PER_KM"`
	EmissionCeilingKg       float64       `mapstructure:"EMISSION_CUMULATIVE_CEILING_KG"`
	EmissionInstantCeilingG float64       `mapstructure:"EMISSION_INSTANT_CEILING_G"`
	EmissionDieselGPerLitre float64       `mapstructure:"EMISSION_DIESEL_G_PER_LITRE"`
	EmissionStationaryKmh   float64       `mapstructure:"EMISSION_STATIONARY_KMH"`
}

var defaults = map[string]any{
	"SERVER_PORT":    ":8080",
	"POSTGRES_URL":   "",
	"REDIS_ADDR":     "",
	"REDIS_PASSWORD": "",
	"MONGO_URI":      "",
	"MONGO_DATABASE": "pathgreen",
	"API_KEY":        "",
	"CORS_ORIGINS":   "http://localhost:3000,http://localhost:5173",
	"LOG_LEVEL":      "info",
	"LOG_PRETTY":     false,

	"TICK_INTERVAL":     "500ms",
	"REPLAY_SEED":       42,
	"REPLAY_ENABLED":    true,
	"INGEST_QUEUE_SIZE": 1024,
	"ALERT_CAPACITY":    50,

	"CLIENT_QUEUE_SIZE":          256,
	"HEARTBEAT_INTERVAL":         "30s",
	"HEARTBEAT_TIMEOUT_MULTIPLE": 3,
	"CHAT_TIMEOUT":               "15s",

	"SINK_QUEUE_SIZE":     2048,
	"SINK_BATCH_SIZE":     100,
	"SINK_FLUSH_INTERVAL": "2s",

	"EMISSION_BASE_G_PER_KM":            650.0,
	"EMISSION_LOAD_PENALTY_G_PER_TONNE": 25.0,
	"EMISSION_OPTIMAL_MIN_KMH":          40.0,
	"EMISSION_OPTIMAL_MAX_KMH":          70.0,
	"EMISSION_LOW_SPEED_PENALTY_PCT":    30.0,
	"EMISSION_HIGH_SPEED_PENALTY_PCT":   8.0,
	"EMISSION_IDLE_G_PER_S":             8.5,
	"EMISSION_IDLE_CHARGE_CAP":          "10s",
	"EMISSION_MAX_TICK_GAP":             "5s",
	"EMISSION_IDLE_WARNING":             "60s",
	"EMISSION_IDLE_CRITICAL":            "120s",
	"EMISSION_SPIKE_G_PER_KM":           900.0,
	"EMISSION_CUMULATIVE_CEILING_KG":    250.0,
	"EMISSION_INSTANT_CEILING_G":        500.0,
	"EMISSION_DIESEL_G_PER_LITRE":       2640.0,
	"EMISSION_STATIONARY_KMH":           1.0,
}

// Load reads an optional .env file, then the process environment.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Emission maps the EMISSION_* settings onto the transform configuration. A
// Config that never went through Load keeps the built-in defaults.
func (c Config) Emission() emission.Config {
	ec := emission.DefaultConfig()
	if c.EmissionBaseGPerKm <= 0 {
		return ec
	}
	ec.BaseGPerKm = c.EmissionBaseGPerKm
	ec.LoadPenaltyGPerTonne = c.EmissionLoadPenalty
	ec.OptimalMinKmh = c.EmissionOptimalMinKmh
	ec.OptimalMaxKmh = c.EmissionOptimalMaxKmh
	ec.LowSpeedPenaltyPct = c.EmissionLowSpeedPct
	ec.HighSpeedPenaltyPct = c.EmissionHighSpeedPct
	ec.StationaryKmh = c.EmissionStationaryKmh
	ec.IdleGPerSecond = c.EmissionIdleGPerSecond
	ec.IdleChargeCap = c.EmissionIdleChargeCap
	ec.MaxTickGap = c.EmissionMaxTickGap
	ec.DieselGPerLitre = c.EmissionDieselGPerLitre
	ec.IdleWarning = c.EmissionIdleWarning
	ec.IdleCritical = c.EmissionIdleCritical
	ec.SpikeGPerKm = c.EmissionSpikeGPerKm
	ec.CumulativeCeilingKg = c.EmissionCeilingKg
	ec.InstantCeilingG = c.EmissionInstantCeilingG
	if c.TickInterval > 0 {
		ec.NominalInterval = c.TickInterval
	}
	return ec
}
