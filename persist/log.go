package persist

import (
	"log"
	"os"
	"time"
)

// Logger wraps the standard library logger with startup/shutdown banners, so
// that a log file on its own makes it obvious when the process was running.
type Logger struct {
	*log.Logger
	file *os.File
}

// NewLogger opens (creating if necessary) the log file at path and writes a
// STARTUP banner to it.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	l := &Logger{
		Logger: log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile),
		file:   f,
	}
	l.Println("STARTUP: chunkserver logging started", time.Now().Format(time.RFC3339))
	return l, nil
}

// Critical logs a message at critical severity and escalates to build's
// panic-on-DEBUG behavior via the caller; Logger itself only records the
// line so that callers in packages that cannot import build (to avoid
// import cycles) still get a durable record.
func (l *Logger) Critical(v ...interface{}) {
	l.Println(append([]interface{}{"CRITICAL:"}, v...)...)
}

// Close writes a SHUTDOWN banner and closes the underlying file.
func (l *Logger) Close() error {
	l.Println("SHUTDOWN: chunkserver logging stopped", time.Now().Format(time.RFC3339))
	return l.file.Close()
}
