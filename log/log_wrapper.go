package log

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

var (
	lock       sync.RWMutex
	stdLogger  log.Logger
	fileLogger log.Logger
	filter     = level.AllowInfo()
)

func init() {
	initStdLogger()
}

// default std logger is enabled
func EnableStdLogger(enable bool) {
	lock.Lock()
	defer lock.Unlock()

	if enable && stdLogger == nil {
		initStdLogger()
	}
	if !enable {
		stdLogger = nil
	}
}

// default file logger is disabled
func EnableFileLogger(enable bool, savePath string) error {
	lock.Lock()
	defer lock.Unlock()

	if !enable {
		fileLogger = nil
		return nil
	}
	return initFileLogger(savePath)
}

func EnableOnlyFileLogger(enable bool, savePath string) error {
	if err := EnableFileLogger(enable, savePath); err != nil {
		return err
	}
	if enable {
		EnableStdLogger(false)
	}
	return nil
}

func Debug(keyvals ...interface{}) {
	logWith(level.Debug, keyvals)
}

func Info(keyvals ...interface{}) {
	logWith(level.Info, keyvals)
}

func Warn(keyvals ...interface{}) {
	logWith(level.Warn, keyvals)
}

func Error(keyvals ...interface{}) {
	logWith(level.Error, keyvals)
}

// SetLevel accepts debug, info, warn and error. Unknown level is info.
func SetLevel(lv string) {
	lock.Lock()
	defer lock.Unlock()

	switch strings.ToLower(lv) {
	case "debug":
		filter = level.AllowDebug()
	case "warn":
		filter = level.AllowWarn()
	case "error":
		filter = level.AllowError()
	default:
		filter = level.AllowInfo()
	}
}

func SetToDebug() { SetLevel("debug") }
func SetToInfo()  { SetLevel("info") }

// Logger returns leveled logger writing to every enabled output, it is
// handed to go-kit components
func Logger() log.Logger {
	return log.LoggerFunc(func(keyvals ...interface{}) error {
		lock.RLock()
		loggers := enabled()
		lock.RUnlock()

		for _, logger := range loggers {
			if err := logger.Log(keyvals...); err != nil {
				return err
			}
		}
		return nil
	})
}

func logWith(lv func(log.Logger) log.Logger, keyvals []interface{}) {
	lock.RLock()
	loggers := enabled()
	lock.RUnlock()

	for _, logger := range loggers {
		lv(logger).Log(keyvals...)
	}
}

func enabled() []log.Logger {
	loggers := make([]log.Logger, 0, 2)
	for _, logger := range []log.Logger{stdLogger, fileLogger} {
		if logger != nil {
			loggers = append(loggers, level.NewFilter(logger, filter))
		}
	}
	return loggers
}

func initStdLogger() {
	stdLogger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	stdLogger = log.With(stdLogger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
}

func initFileLogger(savePath string) error {
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(savePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fileLogger = nil
		return err
	}
	fileLogger = log.NewLogfmtLogger(log.NewSyncWriter(io.Writer(file)))
	fileLogger = log.With(fileLogger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
	return nil
}
