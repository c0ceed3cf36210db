package ioc

import (
	"net/http"

	"github.com/KNICEX/trading-monitor/internal/web"
	"github.com/spf13/viper"
)

func InitServer(handler http.Handler) *web.Server {
	type Config struct {
		Addr string `mapstructure:"addr"`
	}

	cfg := Config{Addr: ":8080"}
	if err := viper.UnmarshalKey("http", &cfg); err != nil {
		panic(err)
	}
	return web.NewServer(cfg.Addr, handler)
}
