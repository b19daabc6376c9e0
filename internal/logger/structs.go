package logger

// Console implements a console based logger.
type Console struct {
	Enabled          bool `mapstructure:"enabled"          toml:"enabled"`
	UseConsoleWriter bool `mapstructure:"useConsoleWriter" toml:"useConsoleWriter"`
}

// Rotation describes one lumberjack rolled log file.
type Rotation struct {
	File       string `mapstructure:"file"       toml:"file"`
	MaxSize    int    `mapstructure:"maxSize"    toml:"maxSize"` // megabytes
	MaxBackups int    `mapstructure:"maxBackups" toml:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"     toml:"maxAge"` // days
	Compress   bool   `mapstructure:"compress"   toml:"compress"`
}

// LogFile implements a file based logger, one rolled file per level group.
type LogFile struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path"    toml:"path"`

	Access Rotation `mapstructure:"access" toml:"access"`
	Error  Rotation `mapstructure:"error"  toml:"error"`
	Info   Rotation `mapstructure:"info"   toml:"info"`
	Trace  Rotation `mapstructure:"trace"  toml:"trace"`
	Warn   Rotation `mapstructure:"warn"   toml:"warn"`
}

// Log implements the logger config.
type Log struct {
	LogLevel string `mapstructure:"logLevel" toml:"logLevel"` // trace, debug, info, warn, error.

	// EnableAccessLogToConsole writes the http access log to stdout as well.
	// Does not overrule Console.Enabled.
	EnableAccessLogToConsole bool `mapstructure:"enableAccessLogToConsole" toml:"enableAccessLogToConsole"`
	ReportCaller             bool `mapstructure:"reportCaller"             toml:"reportCaller"`
	DisableCheckAlive        bool `mapstructure:"disableCheckAlive"        toml:"disableCheckAlive"` // do not log /healthz calls

	// SlowQuery marks sql statements slower than this many milliseconds as warnings.
	SlowQuery int `mapstructure:"slowQuery" toml:"slowQuery"`

	AppName     string `mapstructure:"appName"     toml:"appName"`
	ServiceName string `mapstructure:"serviceName" toml:"serviceName"`

	// Console used mainly for docker and dev.
	Console Console `mapstructure:"console" toml:"console"`

	File LogFile `mapstructure:"file" toml:"file"`
}
