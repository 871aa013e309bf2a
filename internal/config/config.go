package config

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// ModeDemo swaps the JSON-RPC node for a simulated chain that confirms every
	// transaction after a short delay. Nothing leaves the process.
	ModeDemo = "demo"

	// ModeProduction talks to the node at Chain.RpcURL.
	ModeProduction = "production"
)

type Config struct {
	BaseURL  string `validate:"required,url"`
	HttpPort int    `validate:"required,min=1,max=65535"`
	Mode     string `validate:"oneof=demo production"`
	Db       struct {
		Dsn         string `validate:"required"`
		Automigrate bool
	}
	Jwt struct {
		SecretKey string `validate:"required,min=32"`
	}
	Notifications struct {
		Email string `validate:"omitempty,email"`
	}
	Smtp struct {
		Host     string `validate:"required"`
		Port     int    `validate:"required"`
		Username string
		Password string
		From     string `validate:"required"`
	}
	FileUploader struct {
		CloudName string
		ApiKey    string
		ApiSecret string
	}
	RedisServer  string `validate:"required,hostname_port"`
	KafkaServers string `validate:"required"`
	Chain        struct {
		RpcURL    string `validate:"omitempty,url"`
		DefaultID int64  `validate:"required"`
	}
	Contracts struct {
		KYCVerifier string `validate:"omitempty,eth_addr"`
		TrustScore  string `validate:"omitempty,eth_addr"`
		LoanManager string `validate:"omitempty,eth_addr"`
	}
	Tracker struct {
		PollInterval time.Duration `validate:"required"`
		ResumeEvery  time.Duration `validate:"required"`
	}
	Wallet struct {
		SessionTTL time.Duration `validate:"required"`
	}
	Limiter struct {
		Enabled bool
		Rps     float64
		Burst   int
	}
	Admin struct {
		Email    string `validate:"omitempty,email"`
		Password string
		Name     string
	}
}

// Validate checks the values loaded from the environment.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err != nil {
		return err
	}

	if c.Mode == ModeProduction && c.Chain.RpcURL == "" {
		return errors.New("CHAIN_RPC_URL is required in production mode")
	}

	return nil
}
