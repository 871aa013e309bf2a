package mocks

import (
	"time"

	"github.com/trustbond/api/internal/config"
)

// NewConfig returns a valid demo-mode configuration for tests.
func NewConfig() *config.Config {
	cfg := &config.Config{
		BaseURL:      "http://localhost",
		HttpPort:     8080,
		Mode:         config.ModeDemo,
		RedisServer:  "localhost:6379",
		KafkaServers: "localhost:9092",
	}

	cfg.Db.Dsn = "user:pass@localhost:5432/db?sslmode=disable"
	cfg.Jwt.SecretKey = "test_secret_test_secret_test_secret"
	cfg.Notifications.Email = "no-reply@example.com"
	cfg.Smtp.Host = "smtp.example.com"
	cfg.Smtp.Port = 587
	cfg.Smtp.Username = "user@example.com"
	cfg.Smtp.Password = "password"
	cfg.Smtp.From = "no-reply@example.com"
	cfg.Chain.DefaultID = 11155111
	cfg.Tracker.PollInterval = 3 * time.Second
	cfg.Tracker.ResumeEvery = time.Minute
	cfg.Wallet.SessionTTL = 30 * time.Minute

	return cfg
}
