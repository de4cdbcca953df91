package shared

import (
	"encoding/json"
	"os"
)

type ServerConfig struct {
	Addr      string `json:"addr"`
	DBPath    string `json:"db_path"`
	JWTSecret string `json:"jwt_secret"`
	LogLevel  string `json:"log_level"`
}

// LoadServerConfig reads an optional JSON config file and then applies
// environment overrides. Pass an empty path to configure from the
// environment alone.
func LoadServerConfig(path string) (*ServerConfig, error) {
	c := &ServerConfig{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, c); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("DCINV_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("DCINV_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DCINV_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "dcinv.db"
	}
	return c, nil
}

func SaveServerConfig(path string, c *ServerConfig) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}
