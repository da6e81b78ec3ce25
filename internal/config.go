package internal

// ToolConfig is the environment contract shared by the read-only database
// tools. The engine binary has its own, richer config.
type ToolConfig struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	DebugPort      int    `env:"DEBUG_PORT,default=9090"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
}
