package app

import (
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InitLogger initializes the global zap logger from the loaded configuration
// and returns its config for level introspection
func InitLogger() zap.Config {
	var zapConfig zap.Config
	if viper.GetBool("LOGGER_PRODUCTION") {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.DisableStacktrace = true

	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("Couldn't initialize the logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	return zapConfig
}
