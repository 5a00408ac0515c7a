package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Alias1177/Aura/internal/service"
	"github.com/Alias1177/Aura/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	buttonPrices  = "Market Prices"
	buttonSummary = "Trade Summary"
	buttonAnalyze = "Run Analysis"
	buttonMenu    = "Main Menu"

	callbackAnalyze = "analyze:"

	maxInFlight = 32

	welcomeText = "Welcome to Aura, your AI trading assistant! Ask me anything or pick an option below."
)

// Defaults used for analyses requested from chat
var (
	botTimeframes = []string{"1h", "4h"}
	botIndicators = []string{"RSI", "MACD", "EMA"}
)

// Sender is the subset of the Telegram API the bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Assistant is the use-case surface exposed over Telegram
type Assistant interface {
	Summary(ctx context.Context) (models.TradeSummary, error)
	Prices(ctx context.Context) map[string]models.PriceQuote
	Chat(ctx context.Context, in service.ChatInput) (string, error)
	Analyze(ctx context.Context, req models.AnalysisRequest) (service.AnalysisResult, error)
}

// Bot routes Telegram updates to the assistant
type Bot struct {
	api       Sender
	assistant Assistant
	pairs     []string
	logger    zerolog.Logger
}

// NewBot creates a bot offering analyses for the given pairs
func NewBot(api Sender, assistant Assistant, basket []models.Asset) *Bot {
	pairs := make([]string, 0, len(basket))
	for _, a := range basket {
		pairs = append(pairs, a.Pair)
	}
	return &Bot{
		api:       api,
		assistant: assistant,
		pairs:     pairs,
		logger:    log.With().Str("component", "telegram_bot").Logger(),
	}
}

// Run handles updates until ctx is done or the channel closes. Each update
// runs in its own goroutine so a slow model call does not hold up other
// chats; at most maxInFlight updates are handled at once. Run returns after
// in-flight handlers finish.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	defer wg.Wait()

	slots := make(chan struct{}, maxInFlight)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				defer func() {
					if r := recover(); r != nil {
						b.logger.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("Update handler panicked")
					}
				}()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate processes a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	command := message.Command()
	switch {
	case command == "start" || text == buttonMenu:
		msg := tgbotapi.NewMessage(chatID, welcomeText)
		msg.ReplyMarkup = mainMenuKeyboard()
		b.send(msg)
	case command == "prices" || text == buttonPrices:
		b.sendText(chatID, formatPrices(b.assistant.Prices(ctx)))
	case command == "summary" || text == buttonSummary:
		summary, err := b.assistant.Summary(ctx)
		if err != nil {
			b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Error loading trade summary")
			b.sendText(chatID, "Sorry, there was an error. Please try again later.")
			return
		}
		b.sendText(chatID, formatSummary(summary))
	case command == "analyze" || text == buttonAnalyze:
		args := strings.Fields(message.CommandArguments())
		if len(args) == 2 {
			b.runAnalysis(ctx, chatID, args[0], args[1])
			return
		}
		msg := tgbotapi.NewMessage(chatID, "Select a pair and direction:")
		msg.ReplyMarkup = b.analysisKeyboard()
		b.send(msg)
	default:
		b.chat(ctx, chatID, message)
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Acknowledge the callback query
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to acknowledge callback")
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	if data, ok := strings.CutPrefix(callback.Data, callbackAnalyze); ok {
		pair, side, found := strings.Cut(data, ":")
		if !found {
			b.sendText(chatID, "Unknown selection.")
			return
		}
		b.runAnalysis(ctx, chatID, pair, side)
	}
}

func (b *Bot) runAnalysis(ctx context.Context, chatID int64, pair, side string) {
	result, err := b.assistant.Analyze(ctx, models.AnalysisRequest{
		Pair:         strings.ToUpper(pair),
		Timeframes:   botTimeframes,
		Indicators:   botIndicators,
		TradeType:    strings.ToUpper(side),
		BalanceRange: "unspecified",
		Leverage:     "1x",
	})
	if err != nil {
		if service.IsValidation(err) {
			b.sendText(chatID, err.Error())
			return
		}
		b.logger.Error().Err(err).Str("pair", pair).Msg("Analysis failed")
		b.sendText(chatID, "Sorry, the analysis could not be generated. Please try again later.")
		return
	}
	b.sendText(chatID, formatAnalysis(pair, result))
}

func (b *Bot) chat(ctx context.Context, chatID int64, message *tgbotapi.Message) {
	in := service.ChatInput{Message: message.Text}
	if message.From != nil {
		in.UserName = message.From.FirstName
	}

	reply, err := b.assistant.Chat(ctx, in)
	if err != nil {
		if errors.Is(err, service.ErrAIUnavailable) {
			b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Chat unavailable")
			b.sendText(chatID, "The AI assistant is unavailable right now. Try /prices or /summary.")
			return
		}
		b.sendText(chatID, "Sorry, I could not process that message.")
		return
	}
	b.sendText(chatID, reply)
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send message")
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonPrices),
			tgbotapi.NewKeyboardButton(buttonSummary),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonAnalyze),
		),
	)
}

// analysisKeyboard offers a BUY and a SELL button per pair
func (b *Bot) analysisKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, pair := range b.pairs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(pair+" BUY", callbackAnalyze+pair+":BUY"),
			tgbotapi.NewInlineKeyboardButtonData(pair+" SELL", callbackAnalyze+pair+":SELL"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatPrices(quotes map[string]models.PriceQuote) string {
	if len(quotes) == 0 {
		return "Market data is unavailable right now."
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
		fmt.Fprintf(&sb, "%s: %.2f (%+.2f%% 24h)\n", pair, q.Price, q.PercentChange)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSummary(s models.TradeSummary) string {
	if s.TotalTrades == 0 {
		return "No trades logged yet."
	}
	return fmt.Sprintf(
		"Trading History Summary:\nTotal Trades: %d\nTotal P/L: %.2f USD\nWin Rate: %.2f%%\nAverage P/L per Trade: %.2f USD",
		s.TotalTrades, s.TotalProfitLoss, s.WinRate, s.AverageProfitPerTrade,
	)
}

func formatAnalysis(pair string, r service.AnalysisResult) string {
	p := r.Payload
	return fmt.Sprintf(
		"%s analysis (%s)\nSignal: %s\nConfidence: %s\nEntry: %g\nTP1: %g\nTP2: %g\nTP3: %g\nSL: %g\nR:R: %s\n\n%s",
		strings.ToUpper(pair), r.Source, p.Signal, p.Confidence,
		p.Entry, p.TP1, p.TP2, p.TP3, p.SL, p.RRRatio, r.AnalysisText,
	)
}
