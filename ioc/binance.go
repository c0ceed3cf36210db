package ioc

import (
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/spf13/viper"
)

// InitBinanceCli 行情只读, 未配置 key 时使用匿名客户端
func InitBinanceCli() *futures.Client {
	type Config struct {
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
		Testnet   bool   `mapstructure:"testnet"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("cex.binance", &cfg); err != nil {
		panic(err)
	}

	// 密钥允许由环境变量 CEX_BINANCE_API_KEY 等覆盖
	cfg.ApiKey = viper.GetString("cex.binance.api_key")
	cfg.ApiSecret = viper.GetString("cex.binance.api_secret")

	futures.UseTestnet = cfg.Testnet
	return binance.NewFuturesClient(cfg.ApiKey, cfg.ApiSecret)
}
