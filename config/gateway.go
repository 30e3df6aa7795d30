package config

// GatewayConfig is the top-level configuration for the gateway server
// binary, loaded from config.toml with environment overrides (see
// config.Load).
type GatewayConfig struct {
	HTTP struct {
		BindAddress      string `toml:"bind_address" env:"LNURL_GATEWAY_HTTP_BIND_ADDRESS" env-default:"0.0.0.0:8080"`
		AdminBindAddress string `toml:"admin_bind_address" env:"LNURL_GATEWAY_HTTP_ADMIN_BIND_ADDRESS" env-default:"127.0.0.1:8081"`
		PublicHost       string `toml:"public_host" env:"LNURL_GATEWAY_HTTP_PUBLIC_HOST"`
		MaxCommentLength int    `toml:"max_comment_length" env:"LNURL_GATEWAY_HTTP_MAX_COMMENT_LENGTH" env-default:"255"`
	} `toml:"http"`

	Database struct {
		Host            string `toml:"host" env:"LNURL_GATEWAY_DB_HOST"`
		Port            string `toml:"port" env:"LNURL_GATEWAY_DB_PORT" env-default:"5432"`
		User            string `toml:"user" env:"LNURL_GATEWAY_DB_USER"`
		Password        string `toml:"password" env:"LNURL_GATEWAY_DB_PASSWORD"`
		DB              string `toml:"db" env:"LNURL_GATEWAY_DB_NAME"`
		SslMode         string `toml:"ssl_mode" env:"LNURL_GATEWAY_DB_SSL_MODE" env-default:"disable"`
		MaxConns        int    `toml:"max_conns" env:"LNURL_GATEWAY_DB_MAX_CONNS" env-default:"25"`
		MinConns        int    `toml:"min_conns" env:"LNURL_GATEWAY_DB_MIN_CONNS" env-default:"5"`
		MaxConnLifetime int    `toml:"max_conn_lifetime" env:"LNURL_GATEWAY_DB_MAX_CONN_LIFETIME" env-default:"5"`
		MaxConnIdleTime int    `toml:"max_conn_idle_time" env:"LNURL_GATEWAY_DB_MAX_CONN_IDLE_TIME" env-default:"1"`
	} `toml:"database"`

	Redis struct {
		Host     string `toml:"host" env:"LNURL_GATEWAY_REDIS_HOST"`
		Port     string `toml:"port" env:"LNURL_GATEWAY_REDIS_PORT" env-default:"6379"`
		Password string `toml:"password" env:"LNURL_GATEWAY_REDIS_PASSWORD"`
		DB       int    `toml:"db" env:"LNURL_GATEWAY_REDIS_DB" env-default:"0"`
	} `toml:"redis"`

	RateLimit struct {
		// MaxRequests is the admin surface's per-IP request budget within
		// WindowSeconds, counted in Redis across every gateway replica.
		// Zero disables rate limiting.
		MaxRequests   int `toml:"max_requests" env:"LNURL_GATEWAY_RATE_LIMIT_MAX_REQUESTS" env-default:"120"`
		WindowSeconds int `toml:"window_seconds" env:"LNURL_GATEWAY_RATE_LIMIT_WINDOW_SECONDS" env-default:"60"`
	} `toml:"rate_limit"`

	Fleet struct {
		// Partitions is the fixed set of partitions this node serves;
		// a discovery record naming none of them is filtered out of the
		// selectable fleet.
		Partitions []string `toml:"partitions" env:"LNURL_GATEWAY_PARTITIONS" env-separator:","`

		DiscoveryPollIntervalSeconds int `toml:"discovery_poll_interval_seconds" env:"LNURL_GATEWAY_DISCOVERY_POLL_INTERVAL_SECONDS" env-default:"5"`
		MetricsRefreshIntervalSeconds int `toml:"metrics_refresh_interval_seconds" env:"LNURL_GATEWAY_METRICS_REFRESH_INTERVAL_SECONDS" env-default:"15"`
	} `toml:"fleet"`

	Selection struct {
		// Policy is one of "round_robin", "weighted_random", "consistent_hash".
		Policy string `toml:"policy" env:"LNURL_GATEWAY_SELECTION_POLICY" env-default:"round_robin"`
		// CapacityBiasPercent adjusts the effective-inbound capacity check
		// by this fraction before a pick is considered eligible; negative
		// values make the check stricter. Unset (nil) disables the first
		// capacity-biased pass entirely.
		CapacityBiasPercent *float64 `toml:"capacity_bias_percent" env:"LNURL_GATEWAY_CAPACITY_BIAS_PERCENT"`
		ConsistentHashMaxIterations int `toml:"consistent_hash_max_iterations" env:"LNURL_GATEWAY_CONSISTENT_HASH_MAX_ITERATIONS" env-default:"10"`
	} `toml:"selection"`

	Backoff struct {
		InitialIntervalMillis int     `toml:"initial_interval_millis" env:"LNURL_GATEWAY_BACKOFF_INITIAL_INTERVAL_MILLIS" env-default:"500"`
		MaxIntervalSeconds    int     `toml:"max_interval_seconds" env:"LNURL_GATEWAY_BACKOFF_MAX_INTERVAL_SECONDS" env-default:"30"`
		Multiplier            float64 `toml:"multiplier" env:"LNURL_GATEWAY_BACKOFF_MULTIPLIER" env-default:"1.5"`
		RandomizationFactor   float64 `toml:"randomization_factor" env:"LNURL_GATEWAY_BACKOFF_RANDOMIZATION_FACTOR" env-default:"0.5"`
		MaxElapsedSeconds     int     `toml:"max_elapsed_seconds" env:"LNURL_GATEWAY_BACKOFF_MAX_ELAPSED_SECONDS" env-default:"120"`
	} `toml:"backoff"`

	Auth struct {
		// Algorithm is "es256" or "eddsa".
		Algorithm     string `toml:"algorithm" env:"LNURL_GATEWAY_AUTH_ALGORITHM" env-default:"es256"`
		PublicKeyPath string `toml:"public_key_path" env:"LNURL_GATEWAY_AUTH_PUBLIC_KEY_PATH"`
	} `toml:"auth"`

	Crypto struct {
		// MasterKeyPath points at the 32-byte raw key used to encrypt
		// backend connection credentials at rest (internal/crypto).
		MasterKeyPath string `toml:"master_key_path" env:"LNURL_GATEWAY_MASTER_KEY_PATH"`
	} `toml:"crypto"`
}
