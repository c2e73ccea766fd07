package config

const (
	defaultModelName          = "gpt-4o-mini"
	defaultMaxConcurrentCalls = 2
	defaultServerBind         = "127.0.0.1:8787"
	defaultTraceDirectory     = "~/.local/share/quill/traces"
	defaultTraceMaxFiles      = 20
	defaultTraceRetentionDays = 7
	defaultStorePath          = "~/.local/share/quill/quill.db"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Model: Model{
			Name: defaultModelName,
		},
		Limits: Limits{
			MaxConcurrentCalls: defaultMaxConcurrentCalls,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Trace: Trace{
			Directory:     defaultTraceDirectory,
			MaxFiles:      defaultTraceMaxFiles,
			RetentionDays: defaultTraceRetentionDays,
		},
		Store: Store{
			Path: defaultStorePath,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
