package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Schemes.ConfigDir == "" {
		cfg.Schemes.ConfigDir = "/usr/local/etc/hive/schemes"
	}
	if cfg.Storage.DatabaseName == "" {
		cfg.Storage.DatabaseName = DefaultDatabaseName
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}

// DefaultDatabaseName is the statistics database file name inside a scheme index directory.
const DefaultDatabaseName = "hive.db"
