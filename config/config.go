// Package config loads gateway configuration from the environment.
package config

import "github.com/caarlos0/env/v6"

type Config struct {
	API struct {
		Port        int `env:"PORT" envDefault:"8080"`
		MetricsPort int `env:"METRICS_PORT" envDefault:"9090"`
	}
	App struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`
	}
	Upstream struct {
		BaseURL string `env:"UPSTREAM_BASE_URL" envDefault:"https://api.applesnakes.com"`
	}
	Chain struct {
		RPCUrl  string `env:"RPC_URL,notEmpty"`
		Network string `env:"NETWORK" envDefault:"base"`

		// USDC on Base and the treasury address payments land in.
		USDCAddress  string `env:"USDC_ADDRESS" envDefault:"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"`
		PayToAddress string `env:"PAY_TO_ADDRESS"`
	}
	Auth struct {
		JWTSecret string `env:"JWT_SECRET,notEmpty"`
	}
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
