// Package config loads application configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - LoadEnv reads one or more .env files without overriding real
//     environment variables.
//   - Load parses the environment into any struct annotated with env tags
//     and reads ./.env once per process first.
//   - Parse does the same from explicit env.Options, which keeps tests
//     hermetic.
//
// A config type can validate itself by implementing Validator on its pointer
// receiver. Parse calls Validate after parsing and wraps a failure in
// ErrInvalidConfig, so startup stops on an unusable configuration:
//
//	func (c *Config) Validate() error {
//		if c.NonceTTL < c.TokenLifetime {
//			return errors.New("NONCE_TTL must be at least TOKEN_LIFETIME")
//		}
//		return nil
//	}
package config
