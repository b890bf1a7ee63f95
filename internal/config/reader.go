package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

type Reader interface {
	Read() (Config, error)
}

// EnvReader reads the process environment. A .env file in the working
// directory is loaded first.
type EnvReader struct{}

func NewEnvReader() EnvReader {
	return EnvReader{}
}

func (EnvReader) Read() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is shorthand for NewEnvReader().Read().
func Read() (Config, error) {
	return NewEnvReader().Read()
}
