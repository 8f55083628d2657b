package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

type appNameHook struct {
	appName string
}

func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// Init configures the shared logger. level falls back to LOG_LEVEL and then info.
func Init(appName, level string, json bool) {
	InitWithOutput(appName, level, json, os.Stdout)
}

func InitWithOutput(appName, level string, json bool, out io.Writer) {
	Logger.SetOutput(out)

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.Warnf("Invalid log level '%s', defaulting to INFO", level)
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	if json {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Logger.ReplaceHooks(make(logrus.LevelHooks))
	if appName != "" {
		Logger.AddHook(&appNameHook{appName: appName})
	}
}
