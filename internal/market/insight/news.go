package insight

import (
	"fmt"
	"hash/fnv"
	"strings"

	"traderhub.com/internal/market/model"
)

var (
	bullishWords = []string{"surge", "rally", "gain", "rise", "bullish", "growth", "profit", "record high", "breakthrough", "inflows"}
	bearishWords = []string{"crash", "plunge", "fall", "drop", "bearish", "loss", "decline", "crisis", "outflows", "selloff"}
)

// 顺序决定 affectedAssets 的顺序
var assetWords = []struct {
	asset string
	words []string
}{
	{"BTC", []string{"bitcoin", "btc", "crypto"}},
	{"ETH", []string{"ethereum", "eth"}},
	{"GOLD", []string{"gold", "precious metal"}},
	{"OIL", []string{"oil", "petroleum", "opec"}},
	{"USD", []string{"dollar", "usd", "fed", "federal reserve"}},
	{"EUR", []string{"euro", "ecb", "european"}},
	{"GBP", []string{"pound", "gbp", "uk", "britain"}},
	{"NASDAQ", []string{"nasdaq", "tech stock"}},
	{"S&P500", []string{"s&p", "stock market"}},
}

var opinions = map[string][]string{
	"bullish": {
		"This could lift %s prices against the broader market.",
		"Positive momentum may carry %s to new highs.",
		"%s looks set up for further upside.",
	},
	"bearish": {
		"Selling pressure is building on %s, downside risk ahead.",
		"%s may face turbulence, watch the support levels.",
		"Market drag could weigh on %s short-term.",
	},
	"neutral": {
		"%s is balanced for now, waiting for a catalyst.",
		"Forces are even for %s, sideways drift expected.",
		"%s is in a holding pattern, monitor for a breakout.",
	},
}

const maxAffected = 3

// RuleBased 关键词打分的新闻分析，不依赖外部服务
type RuleBased struct{}

func (RuleBased) Analyze(a model.NewsArticle) model.NewsAnalysis {
	text := strings.ToLower(a.Title + " " + a.Description)

	bull, bear := count(text, bullishWords), count(text, bearishWords)
	sentiment := "neutral"
	switch {
	case bull > bear:
		sentiment = "bullish"
	case bear > bull:
		sentiment = "bearish"
	}

	var assets []string
	for _, aw := range assetWords {
		if count(text, aw.words) > 0 {
			assets = append(assets, aw.asset)
		}
	}
	if len(assets) == 0 {
		assets = []string{"USD"}
	}
	if len(assets) > maxAffected {
		assets = assets[:maxAffected]
	}

	// 同一标题总是同一句评语
	h := fnv.New32a()
	h.Write([]byte(a.Title))
	list := opinions[sentiment]
	opinion := fmt.Sprintf(list[h.Sum32()%uint32(len(list))], assets[0])

	return model.NewsAnalysis{
		Sentiment:      sentiment,
		ImpactScore:    min(10, max(1, bull+bear+3)),
		AffectedAssets: assets,
		Opinion:        opinion,
	}
}

func count(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
