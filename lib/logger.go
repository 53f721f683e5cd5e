package lib

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger returns the service logger, writing to STDOUT or a configured log
// file. A file path without an extension gets a date suffix appended.
func Logger(logFilePath string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if logFilePath != "" {
		extension := filepath.Ext(logFilePath)
		path := logFilePath
		if extension == "" {
			path = logFilePath + time.Now().Format("-2006-01-02") + ".log"
		}
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
		if err != nil {
			panic(err)
		}
		logger.SetOutput(file)
	}

	return logger
}
