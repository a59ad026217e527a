// internal/prediction/config.go
package prediction

import (
	"time"

	"cancercare-web/internal/common/config"
)

type Config struct {
	RiskURL  string
	ImageURL string
	Timeout  time.Duration
}

func NewConfig(b config.BackendConfig) *Config {
	return &Config{
		RiskURL:  b.RiskURL,
		ImageURL: b.ImageURL,
		Timeout:  config.GetDuration(b.Timeout),
	}
}
