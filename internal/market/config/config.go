package config

import (
	"time"

	"traderhub.com/pkg/xredis"
)

// Config market-hub 总配置
type Config struct {
	Name      string          `mapstructure:"name" yaml:"name"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Trace     TraceConfig     `mapstructure:"trace" yaml:"trace"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" yaml:"schedule"`
	Demo      DemoConfig      `mapstructure:"demo" yaml:"demo"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Breaker   BreakerConfig   `mapstructure:"breaker" yaml:"breaker"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Hub       HubConfig       `mapstructure:"hub" yaml:"hub"`
	WS        WSConfig        `mapstructure:"ws" yaml:"ws"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Nats      NatsConfig      `mapstructure:"nats" yaml:"nats"`
	Insight   InsightConfig   `mapstructure:"insight" yaml:"insight"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"` // 空则 logs/<name>.log
}

type TraceConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"` // "" 关闭，"stdout" 打印
}

type ScheduleConfig struct {
	News        time.Duration `mapstructure:"news" yaml:"news"`
	Prices      time.Duration `mapstructure:"prices" yaml:"prices"`
	Fluctuation time.Duration `mapstructure:"fluctuation" yaml:"fluctuation"`
}

// DemoConfig 开启后先塞演示数据，并且价格会自己抖动
type DemoConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type ProvidersConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	NewsTimeout   time.Duration `mapstructure:"newsTimeout" yaml:"newsTimeout"`
	NewsDataKey   string        `mapstructure:"newsDataKey" yaml:"newsDataKey"`
	NewsAPIKey    string        `mapstructure:"newsApiKey" yaml:"newsApiKey"`
	CMCKey        string        `mapstructure:"cmcKey" yaml:"cmcKey"`
	NewsDataURL   string        `mapstructure:"newsDataUrl" yaml:"newsDataUrl"`
	NewsAPIURL    string        `mapstructure:"newsApiUrl" yaml:"newsApiUrl"`
	CoinGeckoURL  string        `mapstructure:"coinGeckoUrl" yaml:"coinGeckoUrl"`
	CMCURL        string        `mapstructure:"cmcUrl" yaml:"cmcUrl"`
	YahooURL      string        `mapstructure:"yahooUrl" yaml:"yahooUrl"`
	BinanceURL    string        `mapstructure:"binanceUrl" yaml:"binanceUrl"`
	NewsPerDay    int           `mapstructure:"newsPerDay" yaml:"newsPerDay"` // 免费档配额
	RequestPerMin int           `mapstructure:"requestPerMin" yaml:"requestPerMin"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutiveFailures" yaml:"consecutiveFailures"`
	OpenTimeout         time.Duration `mapstructure:"openTimeout" yaml:"openTimeout"`
}

// RateLimitConfig HTTP 入口按 ip+route 限流
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

type HubConfig struct {
	SendBuffer int `mapstructure:"sendBuffer" yaml:"sendBuffer"`
}

type WSConfig struct {
	PongWait   time.Duration `mapstructure:"pongWait" yaml:"pongWait"`
	PingPeriod time.Duration `mapstructure:"pingPeriod" yaml:"pingPeriod"`
	WriteWait  time.Duration `mapstructure:"writeWait" yaml:"writeWait"`
	ReadLimit  int64         `mapstructure:"readLimit" yaml:"readLimit"`
}

type RedisConfig struct {
	xredis.Config `mapstructure:",squash" yaml:",inline"`

	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Prefix  string        `mapstructure:"prefix" yaml:"prefix"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type NatsConfig struct {
	URL    string `mapstructure:"url" yaml:"url"` // 空则不开镜像
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Follow 跟随节点：不拉数据源，从 nats 收上游的快照和更新；不再向 nats 发
	Follow bool `mapstructure:"follow" yaml:"follow"`
}

// Following url 配了且 follow 打开
func (n NatsConfig) Following() bool { return n.URL != "" && n.Follow }

type InsightConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"` // 空则只用 mock
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Defaults 文件缺失时的默认值；key 要和 mapstructure 对齐
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"name":                        "market-hub",
		"http.addr":                   ":5000",
		"log.level":                   "info",
		"log.file":                    "",
		"trace.endpoint":              "",
		"schedule.news":               "5m",
		"schedule.prices":             "30s",
		"schedule.fluctuation":        "30s",
		"demo.enabled":                true,
		"providers.timeout":           "10s",
		"providers.newsTimeout":       "15s",
		"providers.newsPerDay":        200,
		"providers.requestPerMin":     30,
		"providers.newsDataKey":       "",
		"providers.newsApiKey":        "",
		"providers.cmcKey":            "",
		"providers.newsDataUrl":       "",
		"providers.newsApiUrl":        "",
		"providers.coinGeckoUrl":      "",
		"providers.cmcUrl":            "",
		"providers.yahooUrl":          "",
		"providers.binanceUrl":        "",
		"breaker.consecutiveFailures": 3,
		"breaker.openTimeout":         "1m",
		"ratelimit.rps":               50,
		"ratelimit.burst":             100,
		"hub.sendBuffer":              256,
		"ws.pongWait":                 "60s",
		"ws.pingPeriod":               "25s",
		"ws.writeWait":                "10s",
		"ws.readLimit":                4096,
		"redis.enabled":               false,
		"redis.addr":                  "127.0.0.1:6379",
		"redis.password":              "",
		"redis.db":                    0,
		"redis.prefix":                "market:snapshot",
		"redis.ttl":                   "24h",
		"nats.url":                    "",
		"nats.prefix":                 "market",
		"nats.follow":                 false,
		"insight.endpoint":            "",
		"insight.timeout":             "25s",
	}
}
