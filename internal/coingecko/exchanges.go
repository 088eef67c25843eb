package coingecko

// ExchangeMeta is the injected exchange configuration: a priority table
// for ticker ordering and an exchange -> image map. Tests substitute
// fixtures; DefaultExchangeMeta carries the production tables.
type ExchangeMeta struct {
	// Priority maps an exchange identifier to its sort index; lower
	// sorts first. Exchanges absent from the table sort last.
	Priority map[string]int

	// Images maps an exchange identifier to a logo URL.
	Images map[string]string
}

func DefaultExchangeMeta() ExchangeMeta {
	ordered := []string{
		"binance",
		"binance_us",
		"binance_dex",
		"bitfinex",
		"bittrex",
		"coinbase",
		"gdax",
		"gemini",
		"huobi",
		"kraken",
		"kucoin",
		"okex",
		"bitstamp",
		"gate",
		"poloniex",
		"bithumb",
		"upbit",
		"uniswap_v2",
		"uniswap",
		"sushiswap",
		"one_inch",
		"pancakeswap",
	}
	priority := make(map[string]int, len(ordered))
	for i, id := range ordered {
		priority[id] = i
	}

	return ExchangeMeta{
		Priority: priority,
		Images: map[string]string{
			"binance":    "https://assets.coingecko.com/markets/images/52/small/binance.jpg",
			"bitfinex":   "https://assets.coingecko.com/markets/images/4/small/bitfinex.jpg",
			"bittrex":    "https://assets.coingecko.com/markets/images/10/small/bittrex.png",
			"gdax":       "https://assets.coingecko.com/markets/images/23/small/coinbase.jpg",
			"gemini":     "https://assets.coingecko.com/markets/images/50/small/gemini.png",
			"huobi":      "https://assets.coingecko.com/markets/images/25/small/huobi.jpg",
			"kraken":     "https://assets.coingecko.com/markets/images/29/small/kraken.jpg",
			"kucoin":     "https://assets.coingecko.com/markets/images/61/small/kucoin.png",
			"okex":       "https://assets.coingecko.com/markets/images/96/small/okex.jpg",
			"uniswap_v2": "https://assets.coingecko.com/markets/images/535/small/uniswap.png",
			"sushiswap":  "https://assets.coingecko.com/markets/images/576/small/sushiswap.png",
		},
	}
}
