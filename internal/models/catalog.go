package models

// Investor types offered by the onboarding survey.
const (
	InvestorHODLer     = "HODLer"
	InvestorDayTrader  = "Day Trader"
	InvestorNFT        = "NFT Collector"
	InvestorDeFi       = "DeFi Enthusiast"
	InvestorCryptoNewb = "Crypto Newbie"
)

// Content types a user can subscribe to.
const (
	ContentMarketNews = "Market News"
	ContentCharts     = "Charts"
	ContentSocial     = "Social"
	ContentFun        = "Fun"
)

// Vote target types, used as the prefix of vote keys.
const (
	TargetNews    = "news"
	TargetPrice   = "price"
	TargetInsight = "insight"
	TargetMeme    = "meme"
)

var (
	InvestorTypes = []string{InvestorHODLer, InvestorDayTrader, InvestorNFT, InvestorDeFi, InvestorCryptoNewb}
	ContentTypes  = []string{ContentMarketNews, ContentCharts, ContentSocial, ContentFun}
	PopularAssets = []string{"bitcoin", "ethereum", "binancecoin", "cardano", "solana", "polkadot", "dogecoin", "matic-network"}
	TargetTypes   = []string{TargetNews, TargetPrice, TargetInsight, TargetMeme}
)
