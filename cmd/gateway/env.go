package main

import (
	"os"
	"strings"
)

// Environment variables that provide flag defaults.
const (
	envConfigPath  = "GATEWAY_CONFIG_PATH"
	envLogLevel    = "GATEWAY_LOG_LEVEL"
	envLogFormat   = "GATEWAY_LOG_FORMAT"
	envWatchConfig = "GATEWAY_WATCH_CONFIG"
)

const defaultConfigPath = "configs/gateway.yaml"

// flagDefaults reads flag defaults from the environment. Empty logging
// values defer to the configuration file.
func flagDefaults() cliFlags {
	return cliFlags{
		configPath: getEnvOrDefault(envConfigPath, defaultConfigPath),
		logLevel:   os.Getenv(envLogLevel),
		logFormat:  os.Getenv(envLogFormat),
		watch:      getEnvBool(envWatchConfig, true),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses true/1/yes/on and false/0/no/off; anything else,
// including unset, yields defaultValue.
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultValue
}
