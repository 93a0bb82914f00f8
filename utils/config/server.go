package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Port        int    `yaml:"port"`
	DataDir     string `yaml:"dataDir"` // Directory for the bolt store and uploaded documents
	Enabled     bool   `yaml:"enabled"`
	BearerToken string `yaml:"bearerToken"`
	CORS        CORS   `yaml:"cors"`
}

// CORS holds Cross-Origin Resource Sharing settings
type CORS struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	AllowedMethods []string `yaml:"allowedMethods"`
	AllowedHeaders []string `yaml:"allowedHeaders"`
	MaxAge         int      `yaml:"maxAge"`
}

// GetServerConfig returns the server section, creating it with defaults if absent
func (c *EnvConfig) GetServerConfig() *ServerConfig {
	if c.Server == nil {
		c.Server = &ServerConfig{
			Port:    8088,
			DataDir: "data",
		}
	}
	return c.Server
}

// UpdateServerConfig replaces the server section
func (c *EnvConfig) UpdateServerConfig(serverConfig ServerConfig) {
	c.Server = &serverConfig
}

// GenerateBearerToken returns a random 32-byte hex token
func GenerateBearerToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
