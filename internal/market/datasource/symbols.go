package datasource

import (
	"strings"
	"time"
)

type coin struct {
	ID     string // coingecko id
	Symbol string
	Name   string
}

var Coins = []coin{
	{"bitcoin", "BTC", "Bitcoin"},
	{"ethereum", "ETH", "Ethereum"},
	{"solana", "SOL", "Solana"},
	{"ripple", "XRP", "XRP"},
	{"cardano", "ADA", "Cardano"},
	{"binancecoin", "BNB", "BNB"},
	{"dogecoin", "DOGE", "Dogecoin"},
	{"avalanche-2", "AVAX", "Avalanche"},
	{"chainlink", "LINK", "Chainlink"},
	{"polkadot", "DOT", "Polkadot"},
	{"polygon", "MATIC", "Polygon"},
	{"cosmos", "ATOM", "Cosmos"},
}

type yahooSymbol struct {
	Key  string // snapshot 里的 key
	Name string
}

// ForexSymbols yahoo 代码 -> 快照 key
var ForexSymbols = map[string]yahooSymbol{
	"JPY=X":    {"USD/JPY", "US Dollar / Japanese Yen"},
	"EURUSD=X": {"EUR/USD", "Euro / US Dollar"},
	"GBPUSD=X": {"GBP/USD", "British Pound / US Dollar"},
	"CHF=X":    {"USD/CHF", "US Dollar / Swiss Franc"},
	"AUDUSD=X": {"AUD/USD", "Australian Dollar / US Dollar"},
}

var CommoditySymbols = map[string]yahooSymbol{
	"GC=F": {"GOLD", "Gold"},
	"SI=F": {"SILVER", "Silver"},
	"CL=F": {"OIL", "Crude Oil"},
}

// 支持的周期
var Timeframes = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
}

const (
	AssetCrypto = "crypto"
	AssetForex  = "forex"
)

// BinanceSymbol BTC -> BTCUSDT
func BinanceSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, "USDT") {
		return s
	}
	return s + "USDT"
}

// YahooSymbol 把前端的 symbol 转成 yahoo 代码：BTC -> BTC-USD, EUR-USD -> EURUSD=X, XAU-USD -> GC=F
func YahooSymbol(symbol, assetType string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch s {
	case "XAU-USD", "GOLD":
		return "GC=F"
	case "XAG-USD", "SILVER":
		return "SI=F"
	case "OIL", "WTI":
		return "CL=F"
	}
	if assetType == AssetForex {
		s = strings.NewReplacer("-", "", "/", "").Replace(s)
		if strings.HasPrefix(s, "USD") && len(s) == 6 {
			return s[3:] + "=X"
		}
		return s + "=X"
	}
	return s + "-USD"
}
