package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/retinalab/retina-dashboard/internal/util"
	"sigs.k8s.io/yaml"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig  `json:"database"`
	Service  *svcConfig `json:"service"`
}

type dbConfig struct {
	Type     string `json:"type" envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `json:"hostname" envconfig:"DB_HOST" default:"localhost"`
	Port     string `json:"port" envconfig:"DB_PORT" default:"5432"`
	Name     string `json:"name" envconfig:"DB_NAME" default:"retina"`
	User     string `json:"user" envconfig:"DB_USER" default:"admin"`
	Password string `json:"password" envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string     `json:"address" envconfig:"RETINA_DASHBOARD_ADDRESS" default:":3443"`
	MetricsAddress  string     `json:"metricsAddress" envconfig:"RETINA_DASHBOARD_METRICS_ADDRESS" default:":8080"`
	LogLevel        string     `json:"logLevel" envconfig:"RETINA_DASHBOARD_LOG_LEVEL" default:"info"`
	MigrationFolder string     `json:"migrationFolder" envconfig:"RETINA_DASHBOARD_MIGRATIONS_FOLDER" default:""`
	AllowedOrigins  []string   `json:"allowedOrigins" envconfig:"RETINA_DASHBOARD_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	Auth            Auth       `json:"auth"`
	S3              S3         `json:"s3"`
	Processing      Processing `json:"processing"`
	Events          Events     `json:"events"`
}

type Auth struct {
	AuthenticationType string `json:"type" envconfig:"RETINA_DASHBOARD_AUTH" default:"local"`
	JwkCertURL         string `json:"jwkUrl" envconfig:"RETINA_DASHBOARD_JWK_URL" default:""`
	LocalSecret        string `json:"localSecret" envconfig:"RETINA_DASHBOARD_LOCAL_SECRET" default:""`
}

type S3 struct {
	Endpoint  string `json:"endpoint" envconfig:"RETINA_DASHBOARD_S3_ENDPOINT" default:""`
	Bucket    string `json:"bucket" envconfig:"RETINA_DASHBOARD_S3_BUCKET" default:"retina-artifacts"`
	AccessKey string `json:"accessKey" envconfig:"RETINA_DASHBOARD_S3_ACCESS_KEY" default:""`
	SecretKey string `json:"secretKey" envconfig:"RETINA_DASHBOARD_S3_SECRET_KEY" default:""`
	UseSSL    bool   `json:"useSSL" envconfig:"RETINA_DASHBOARD_S3_USE_SSL" default:"false"`
	// PublicURL is the prefix of artifact urls handed back to clients.
	PublicURL string `json:"publicUrl" envconfig:"RETINA_DASHBOARD_S3_PUBLIC_URL" default:""`
}

type Processing struct {
	FundusDelay   util.Duration `json:"fundusDelay" envconfig:"RETINA_DASHBOARD_FUNDUS_DELAY" default:"3s"`
	ErgDelay      util.Duration `json:"ergDelay" envconfig:"RETINA_DASHBOARD_ERG_DELAY" default:"4s"`
	AnalysisDelay util.Duration `json:"analysisDelay" envconfig:"RETINA_DASHBOARD_ANALYSIS_DELAY" default:"5s"`
	Workers       int           `json:"workers" envconfig:"RETINA_DASHBOARD_WORKERS" default:"4"`
	SweepInterval util.Duration `json:"sweepInterval" envconfig:"RETINA_DASHBOARD_SWEEP_INTERVAL" default:"1m"`
	StuckTimeout  util.Duration `json:"stuckTimeout" envconfig:"RETINA_DASHBOARD_STUCK_TIMEOUT" default:"10m"`
}

type Events struct {
	Writer   string   `json:"writer" envconfig:"RETINA_DASHBOARD_EVENTS_WRITER" default:"stdout"`
	Brokers  []string `json:"brokers" envconfig:"RETINA_DASHBOARD_KAFKA_BROKERS" default:""`
	Topic    string   `json:"topic" envconfig:"RETINA_DASHBOARD_KAFKA_TOPIC" default:"retina.dashboard.events"`
	ClientID string   `json:"clientId" envconfig:"RETINA_DASHBOARD_KAFKA_CLIENT_ID" default:"retina-dashboard"`
}

// New returns the process configuration read from the environment.
func New() (*Config, error) {
	if singleConfig == nil {
		cfg, err := Load("")
		if err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// Load resolves defaults and environment first, then applies the optional YAML file on top.
func Load(configFile string) (*Config, error) {
	cfg := NewDefault()

	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	if configFile == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", configFile, err)
	}

	return cfg, nil
}

func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{},
		Service:  &svcConfig{},
	}
}

func (c *Config) String() string {
	redacted := *c.Database
	redacted.Password = "*****"
	return fmt.Sprintf("db=%s@%s:%s/%s (%s) address=%s auth=%q events=%s",
		redacted.User, redacted.Hostname, redacted.Port, redacted.Name, redacted.Type,
		c.Service.Address, c.Service.Auth.AuthenticationType, c.Service.Events.Writer)
}
