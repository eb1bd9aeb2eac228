package logging

import (
	"github.com/phuslu/log"
)

// Setup configures the process-wide default logger. When file is empty the
// logger writes human-readable output to stderr (interactive runs); otherwise
// it writes JSON lines to the given file with rotation (service runs).
func Setup(level, file string) {
	log.DefaultLogger.Level = log.ParseLevel(level)
	if file == "" {
		log.DefaultLogger.Writer = &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
		}
		return
	}
	log.DefaultLogger.Writer = &log.FileWriter{
		Filename:   file,
		MaxSize:    10 << 20,
		MaxBackups: 3,
		LocalTime:  true,
	}
}

// New returns a logger tagged with a component name, sharing the default
// logger's level and writer.
func New(component string) log.Logger {
	return log.Logger{
		Level:   log.DefaultLogger.Level,
		Context: log.NewContext(nil).Str("component", component).Value(),
		Writer:  log.DefaultLogger.Writer,
	}
}
