package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Redis      Redis
	Workflow   Workflow
	Payout     Payout
	Settlement Settlement
	Kafka      Kafka
	Storage    Storage
	Auth       Auth
}

type Redis struct {
	Addr          string `env:"Redis_Address" envDefault:"localhost:6379"`
	Password      string `env:"Redis_Password"`
	DB            int    `env:"Redis_DB"`
	KeyPrefix     string `env:"Redis_KeyPrefix" envDefault:"reviewq"`
	StreamKey     string `env:"Redis_StreamKey" envDefault:"reviewq:payouts"`
	Group         string `env:"Redis_Group" envDefault:"settlement"`
	ScheduledZSet string `env:"Redis_ScheduledZSet" envDefault:"reviewq:payouts:delayed"`
	DLQStreamKey  string `env:"Redis_DLQStreamKey" envDefault:"reviewq:payouts:dlq"`
}

type Workflow struct {
	// Store is "redis" or "memory".
	Store         string        `env:"Workflow_Store" envDefault:"redis"`
	RejectPolicy  string        `env:"Workflow_RejectPolicy" envDefault:"lenient"`
	LeaseTTL      time.Duration `env:"Workflow_LeaseTTL"`
	SweepInterval time.Duration `env:"Workflow_SweepInterval" envDefault:"30s"`
}

type Payout struct {
	Amount      uint64 `env:"Payout_Amount" envDefault:"1000000"`
	Account     string `env:"Payout_Account"`
	Recipient   string `env:"Payout_Recipient" envDefault:"account"`
	MaxAttempts int    `env:"Payout_MaxAttempts" envDefault:"5"`
}

type Settlement struct {
	URL     string        `env:"Settlement_URL"`
	Timeout time.Duration `env:"Settlement_Timeout" envDefault:"10s"`
}

type Kafka struct {
	Brokers []string `env:"Kafka_Brokers" envSeparator:","`
	Topic   string   `env:"Kafka_Topic" envDefault:"reviewq.events"`
}

type Storage struct {
	Endpoint   string `env:"Storage_Endpoint"`
	AccessKey  string `env:"Storage_AccessKey"`
	SecretKey  string `env:"Storage_SecretKey"`
	BucketName string `env:"Storage_BucketName" envDefault:"task-images"`
	UseSSL     bool   `env:"Storage_UseSSL"`
	PublicURL  string `env:"Storage_PublicURL"`
}

type Auth struct {
	JWTSecret string `env:"Auth_JWTSecret"`
}

// Parse reads an optional .env file and then the process environment.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load() *Config {
	c, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	return c
}
