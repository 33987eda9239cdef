package config

import (
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type EngineConfig struct {
	DatabaseURL   string
	HorizonMonths int
	ScoreRawMin   int
	ScoreRawMax   int
}

var instance *EngineConfig
var once sync.Once

func GetEngineConfig() *EngineConfig {
	once.Do(func() {
		instance = &EngineConfig{}

		if err := godotenv.Load(); err != nil {
			logrus.Infof("No .env file loaded: %s", err.Error())
		}

		instance.DatabaseURL = getEnv("DATABASE_URL", "")
		if instance.DatabaseURL == "" {
			logrus.Fatal("could not get db url")
		}

		instance.HorizonMonths = getEnvAsInt("ROTA_HORIZON_MONTHS", 3)
		instance.ScoreRawMin = getEnvAsInt("COVERAGE_SCORE_RAW_MIN", -150)
		instance.ScoreRawMax = getEnvAsInt("COVERAGE_SCORE_RAW_MAX", 90)
	})

	return instance
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := getEnv(name, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}

	return defaultVal
}
