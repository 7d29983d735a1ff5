package config

import (
	"encoding/base64"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	ImageDir       string
}

// Env holds environment-sourced defaults for the command line flags.
// Variables are prefixed with DMCHAT_, e.g. DMCHAT_ADDR.
type Env struct {
	Addr           string   `envconfig:"ADDR" default:"localhost:8000"`
	DSN            string   `envconfig:"DSN" default:"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"`
	SigningKey     string   `envconfig:"SIGNING_KEY"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	ImageDir       string   `envconfig:"IMAGE_DIR" default:"images"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("dmchat", &e); err != nil {
		return Env{}, fmt.Errorf("process env: %w", err)
	}
	return e, nil
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, imageDir string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if imageDir == "" {
		return nil, fmt.Errorf("image directory cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		ImageDir:       imageDir,
	}, nil
}
