package config

import (
	"github.com/spf13/viper"
	"sync"
	"time"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("http_port", "HTTP_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("market_source", "MARKET_SOURCE")
		viper.BindEnv("binance_base_url", "BINANCE_BASE_URL")
		viper.BindEnv("check_interval", "CHECK_INTERVAL")
		viper.BindEnv("fetch_timeout", "FETCH_TIMEOUT")
		viper.BindEnv("metrics_save_interval", "METRICS_SAVE_INTERVAL")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("http_port", 8080)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("db_path", "/app/data/alerts.db")
		viper.SetDefault("market_source", "binance")
		viper.SetDefault("binance_base_url", "https://api.binance.com")
		viper.SetDefault("check_interval", 60*time.Second)
		viper.SetDefault("fetch_timeout", 10*time.Second)
		viper.SetDefault("metrics_save_interval", 5*time.Minute)
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

// GetDuration accepts Go duration strings ("90s", "2m") from the environment.
func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}
