package ioc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

func RedisPrefix() string {
	var cfg RedisConfig
	if err := viper.UnmarshalKey("redis", &cfg); err != nil {
		panic(err)
	}
	return cfg.Prefix
}

// InitRedis 未配置 addr 时返回 nil, 由调用方退回单实例内存存储
func InitRedis() redis.UniversalClient {
	var cfg RedisConfig
	if err := viper.UnmarshalKey("redis", &cfg); err != nil {
		panic(err)
	}
	if cfg.Addr == "" {
		return nil
	}
	cfg.Password = viper.GetString("redis.password")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(err)
	}
	return client
}
