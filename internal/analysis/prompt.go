package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Alias1177/Aura/models"
)

// ChatContext is everything the chat prompt is built from
type ChatContext struct {
	UserName string
	AIName   string
	Message  string
	Quotes   map[string]models.PriceQuote
	Summary  *models.TradeSummary // nil when no trades are logged
}

// ChatPrompt builds the assistant prompt with live prices and trade history
func ChatPrompt(c ChatContext) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a helpful and knowledgeable AI trading assistant named %s. ", c.AIName))
	sb.WriteString(fmt.Sprintf("Your purpose is to assist %s with trading-related questions, market analysis, and general inquiries. ", c.UserName))
	sb.WriteString(fmt.Sprintf("You now have access to live market data and %s's trading history. ", c.UserName))
	sb.WriteString("Use this context to provide more informed and personalized answers. ")
	sb.WriteString("Be concise, informative, and always encourage users to do their own research. ")
	sb.WriteString("Do not provide financial advice or recommendations to buy/sell. ")
	sb.WriteString("Do not act as a trading bot or execute trades. ")
	sb.WriteString("Do not make up prices or trade data if not explicitly provided.\n\n")

	sb.WriteString("--- Context ---\n")
	sb.WriteString(MarketContext(c.Quotes))
	sb.WriteString("\n")
	if c.Summary != nil && c.Summary.TotalTrades > 0 {
		sb.WriteString("\nYour Trading History Summary:\n")
		sb.WriteString(fmt.Sprintf("- Total Trades: %d\n", c.Summary.TotalTrades))
		sb.WriteString(fmt.Sprintf("- Total P/L: %.2f USD\n", c.Summary.TotalProfitLoss))
		sb.WriteString(fmt.Sprintf("- Win Rate: %.2f%%\n", c.Summary.WinRate))
		sb.WriteString(fmt.Sprintf("- Avg. P/L per Trade: %.2f USD\n", c.Summary.AverageProfitPerTrade))
	}
	sb.WriteString("\n--- End Context ---\n\n")

	sb.WriteString("User: ")
	sb.WriteString(c.Message)
	return sb.String()
}

// MarketContext lists quotes sorted by pair; empty when there are none
func MarketContext(quotes map[string]models.PriceQuote) string {
	if len(quotes) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(quotes))
	for pair := range quotes {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	var sb strings.Builder
	sb.WriteString("Current Market Prices:\n")
	for _, pair := range pairs {
		q := quotes[pair]
		sb.WriteString(fmt.Sprintf("- %s: %.2f USD (%.2f%% in 24h)\n", pair, q.Price, q.PercentChange))
	}
	return sb.String()
}

// AnalysisPrompt asks the model for a fenced JSON block followed by prose
func AnalysisPrompt(req models.AnalysisRequest, price float64, quotes map[string]models.PriceQuote) string {
	var sb strings.Builder
	sb.Grow(1024)

	sb.WriteString("You are Aura, an AI crypto trading analyst. Produce a trade plan for the request below.\n\n")
	sb.WriteString(fmt.Sprintf("Pair: %s\n", req.Pair))
	if price > 0 {
		sb.WriteString(fmt.Sprintf("Current price: %.6f\n", price))
	} else {
		sb.WriteString("Current price: unavailable\n")
	}
	sb.WriteString(fmt.Sprintf("Timeframes: %s\n", strings.Join(req.Timeframes, ", ")))
	sb.WriteString(fmt.Sprintf("Indicators: %s\n", strings.Join(req.Indicators, ", ")))
	sb.WriteString(fmt.Sprintf("Trade style: %s\n", req.TradeType))
	sb.WriteString(fmt.Sprintf("Balance range: %s\n", req.BalanceRange))
	sb.WriteString(fmt.Sprintf("Leverage: %s\n\n", req.Leverage))

	if mc := MarketContext(quotes); mc != "" {
		sb.WriteString(mc)
		sb.WriteString("\n")
	}

	sb.WriteString("Respond with a fenced JSON block first, exactly in this shape:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{"signal": "BUY|SELL|HOLD|NEUTRAL", "confidence": "85%", "entry": 0.0, "tp1": 0.0, "tp2": 0.0, "tp3": 0.0, "sl": 0.0, "rr_ratio": "1:2"}`)
	sb.WriteString("\n```\n")
	sb.WriteString("All prices are plain numbers in USD. After the block, explain the setup in at most 150 words. ")
	sb.WriteString("Do not repeat section headers and do not invent data that is not provided above.")
	return sb.String()
}
