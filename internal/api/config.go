package api

// Config holds the HTTP-layer settings.
type Config struct {
	// JWTSecret verifies bearer tokens on the lesson routes. Empty disables
	// those routes with 503.
	JWTSecret []byte

	MaxBodyBytes   int64 // JSON bodies; default 1 MiB
	MaxUploadBytes int64 // voice uploads; default 25 MiB
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 25 << 20
	}
	return c
}
