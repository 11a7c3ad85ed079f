package logging

// Config selects the log format, minimum level, and destination. The zero
// Format disables structured output entirely.
type Config struct {
	Format string // "jsonl" or "" (disabled)
	Level  string
	Output string // "stderr", "stdout", or a file path
}

func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: "stderr",
	}
}

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

func levelPriority(level string) int {
	if p, ok := levelOrder[level]; ok {
		return p
	}
	return levelOrder[LevelInfo]
}
