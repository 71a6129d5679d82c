package config

// RedisConfig is optional; an empty URL keeps rate limiting in memory.
type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
}
