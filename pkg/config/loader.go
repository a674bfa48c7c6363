package config

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Validator is implemented by configs that check themselves after parsing.
type Validator interface {
	Validate() error
}

// LoadEnv loads variables from the given .env files without overriding ones
// already set in the process environment. With no arguments it reads ./.env.
// Missing files are not an error.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Load parses the environment into a new T using env struct tags, then runs
// T's Validate method when it has one. The default .env file is read once
// per process before the first parse.
//
//	type Config struct {
//		Secret string        `env:"TOKEN_SECRET,required"`
//		TTL    time.Duration `env:"NONCE_TTL" envDefault:"24h"`
//	}
//
//	cfg, err := config.Load[Config]()
func Load[T any]() (T, error) {
	defaultEnvLoaded.Do(func() {
		_ = LoadEnv()
	})

	return Parse[T](env.Options{})
}

// Parse is Load without the .env side effect. Tests use it with
// env.Options.Environment to supply variables explicitly.
func Parse[T any](opts env.Options) (T, error) {
	v, err := env.ParseAsWithOptions[T](opts)
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}

	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			var zero T
			return zero, errors.Join(ErrInvalidConfig, err)
		}
	}

	return v, nil
}
