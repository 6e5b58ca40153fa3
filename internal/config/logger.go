package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// InitLogger configures the process-wide logrus logger from LOG_LEVEL and LOG_FORMAT.
func InitLogger(cfg *Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("LOG_LEVEL=%q not recognised, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
}
