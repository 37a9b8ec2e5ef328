package config

const (
	defaultListen              = "127.0.0.1:7466"
	defaultReadTimeoutSeconds  = 10
	defaultWriteTimeoutSeconds = 30
	defaultDatabasePath        = "~/.prodtrack/prodtrack.db"
	defaultFileTree            = "standard"
	defaultEventsLogPath       = "~/.prodtrack/events.jsonl"
	defaultEventsPollMillis    = 1000
	defaultEventsBatchSize     = 100
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
)

func defaultLabels() map[string]string {
	return map[string]string{
		"todo":             "TODO",
		"wip":              "WIP",
		"waiting_approval": "WFA",
		"done":             "DONE",
		"retake":           "RETAKE",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Listen:              defaultListen,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
		},
		Database: Database{
			Path: defaultDatabasePath,
		},
		FileTree: FileTree{
			Default: defaultFileTree,
		},
		Events: Events{
			LogPath:        defaultEventsLogPath,
			PollIntervalMS: defaultEventsPollMillis,
			BatchSize:      defaultEventsBatchSize,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Workflow: Workflow{
			Labels: defaultLabels(),
		},
	}
}
