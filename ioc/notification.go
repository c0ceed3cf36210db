package ioc

import (
	"net/http"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/KNICEX/trading-monitor/internal/service/notification/browser"
	"github.com/KNICEX/trading-monitor/internal/service/notification/email"
	"github.com/KNICEX/trading-monitor/internal/service/notification/telegram"
	"github.com/KNICEX/trading-monitor/internal/service/notification/webhook"
	"github.com/spf13/viper"
)

type notificationConfig struct {
	Level2Cooldown      time.Duration `mapstructure:"level2_cooldown"`
	Level3Cooldown      time.Duration `mapstructure:"level3_cooldown"`
	SummaryCooldown     time.Duration `mapstructure:"summary_cooldown"`
	MaxPerDay           int           `mapstructure:"max_per_day"`
	ChannelTimeout      time.Duration `mapstructure:"channel_timeout"`
	NotifyInitialSignal bool          `mapstructure:"notify_initial_signal"`
	Retry               struct {
		Attempts int           `mapstructure:"attempts"`
		Min      time.Duration `mapstructure:"min"`
		Max      time.Duration `mapstructure:"max"`
		Factor   float64       `mapstructure:"factor"`
	} `mapstructure:"retry"`
}

func loadNotificationConfig() notificationConfig {
	gate := notification.DefaultGateConfig()
	retry := notification.DefaultRetryPolicy()
	cfg := notificationConfig{
		Level2Cooldown:      gate.DefaultLevel2Cooldown,
		Level3Cooldown:      gate.DefaultLevel3Cooldown,
		SummaryCooldown:     gate.SummaryCooldown,
		MaxPerDay:           gate.DefaultMaxPerDay,
		ChannelTimeout:      10 * time.Second,
		NotifyInitialSignal: true,
	}
	cfg.Retry.Attempts = retry.Attempts
	cfg.Retry.Min = retry.Min
	cfg.Retry.Max = retry.Max
	cfg.Retry.Factor = retry.Factor
	if err := viper.UnmarshalKey("notification", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

// NotifyInitialSignal 首次观测到信号时是否发出通知
func NotifyInitialSignal() bool {
	return loadNotificationConfig().NotifyInitialSignal
}

func InitGate(log notification.Log) *notification.Gate {
	cfg := loadNotificationConfig()
	return notification.NewGate(log, notification.WithGateConfig(notification.GateConfig{
		Thresholds:            InitLevelThresholds(),
		DefaultLevel2Cooldown: cfg.Level2Cooldown,
		DefaultLevel3Cooldown: cfg.Level3Cooldown,
		SummaryCooldown:       cfg.SummaryCooldown,
		DefaultMaxPerDay:      cfg.MaxPerDay,
	}))
}

type channelsConfig struct {
	Webhook struct {
		Enabled bool          `mapstructure:"enabled"`
		Secret  string        `mapstructure:"secret"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"webhook"`
	Telegram struct {
		Token string `mapstructure:"token"`
	} `mapstructure:"telegram"`
	Email   email.Config `mapstructure:"email"`
	Browser struct {
		Enabled        bool     `mapstructure:"enabled"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"browser"`
}

func loadChannelsConfig() channelsConfig {
	var cfg channelsConfig
	if err := viper.UnmarshalKey("channels", &cfg); err != nil {
		panic(err)
	}
	// 密钥类配置单独读取, 使环境变量覆盖生效
	cfg.Webhook.Secret = viper.GetString("channels.webhook.secret")
	cfg.Telegram.Token = viper.GetString("channels.telegram.token")
	cfg.Email.Password = viper.GetString("channels.email.password")
	return cfg
}

// InitBrowserHub 浏览器推送未启用时返回 nil
func InitBrowserHub() *browser.Hub {
	cfg := loadChannelsConfig()
	if !cfg.Browser.Enabled {
		return nil
	}
	return browser.NewHub(cfg.Browser.AllowedOrigins...)
}

// InitRouter 只注册已配置的渠道, 其余渠道投递时记为跳过
func InitRouter(hub *browser.Hub) *notification.Router {
	cfg := loadChannelsConfig()
	ncfg := loadNotificationConfig()
	policy := notification.RetryPolicy{
		Attempts: ncfg.Retry.Attempts,
		Min:      ncfg.Retry.Min,
		Max:      ncfg.Retry.Max,
		Factor:   ncfg.Retry.Factor,
	}

	var senders []notification.Sender
	if cfg.Webhook.Enabled {
		opts := []webhook.Option{webhook.WithSecret(cfg.Webhook.Secret)}
		if cfg.Webhook.Timeout > 0 {
			opts = append(opts, webhook.WithHTTPClient(&http.Client{Timeout: cfg.Webhook.Timeout}))
		}
		senders = append(senders, webhook.NewSender(opts...))
	}
	if cfg.Telegram.Token != "" {
		sender, err := telegram.NewBotSender(cfg.Telegram.Token)
		if err != nil {
			panic(err)
		}
		senders = append(senders, sender)
	}
	if cfg.Email.Host != "" {
		senders = append(senders, email.NewSender(cfg.Email))
	}
	if hub != nil {
		senders = append(senders, hub)
	}

	opts := []notification.RouterOption{notification.WithChannelTimeout(ncfg.ChannelTimeout)}
	for _, sender := range senders {
		opts = append(opts, notification.WithSender(notification.WithRetry(sender, policy)))
	}
	return notification.NewRouter(opts...)
}
