package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// QueryExecutor answers a natural-language query. graph.App satisfies it.
type QueryExecutor interface {
	Execute(ctx context.Context, input string) (string, error)
}

// MessageSender is the slice of *discordgo.Session the handler talks to
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Handler handles Discord messages
type Handler struct {
	app        QueryExecutor
	timeout    time.Duration
	chunkDelay time.Duration
	logger     *zap.Logger
}

// NewHandler creates a new message handler. A zero timeout leaves the query unbounded.
func NewHandler(app QueryExecutor, timeout time.Duration, log *zap.Logger) *Handler {
	return &Handler{
		app:        app,
		timeout:    timeout,
		chunkDelay: 100 * time.Millisecond,
		logger:     logger.For(log, "discord"),
	}
}

// HandleMessage processes incoming Discord messages
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State == nil || s.State.User == nil || m.Message == nil {
		return
	}
	h.handle(context.Background(), s, s.State.User.ID, m.Message)
}

func (h *Handler) handle(ctx context.Context, sender MessageSender, botID string, m *discordgo.Message) {
	query, ok := extractQuery(botID, m)
	if !ok {
		return
	}

	log := h.logger.With(
		zap.String("channel_id", m.ChannelID),
		zap.String("user_id", m.Author.ID),
		zap.Bool("is_dm", m.GuildID == ""),
	)
	log.Info("Processing Discord message", zap.String("query", query))

	if err := sender.ChannelTyping(m.ChannelID); err != nil {
		log.Debug("Failed to send typing indicator", zap.Error(err))
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	answer, err := h.app.Execute(ctx, query)
	if err != nil {
		log.Error("Failed to answer query",
			zap.Error(err),
			zap.String("error_type", string(apperrors.TypeOf(err))),
		)
		answer = errorReply(err)
	}

	if err := h.sendLongMessage(sender, m.ChannelID, answer); err != nil {
		log.Error("Failed to send response", zap.Error(err))
	}
}

// extractQuery decides whether the bot should answer m and returns the
// query text with any leading mention of the bot removed. The bot answers
// direct messages and guild messages that mention it.
func extractQuery(botID string, m *discordgo.Message) (string, bool) {
	if m.Author == nil || m.Author.ID == botID || m.Author.Bot {
		return "", false
	}

	isDM := m.GuildID == ""
	mentioned := false
	for _, u := range m.Mentions {
		if u != nil && u.ID == botID {
			mentioned = true
			break
		}
	}
	if !isDM && !mentioned {
		return "", false
	}

	content := strings.TrimSpace(m.Content)
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		content = strings.TrimSpace(strings.ReplaceAll(content, prefix, ""))
	}
	if content == "" {
		return "", false
	}
	return content, true
}

func errorReply(err error) string {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeContext:
		return "Sorry, that question took too long to answer. Try asking something narrower."
	case apperrors.ErrorTypeAgent:
		return "Sorry, I couldn't work out an answer from the database."
	default:
		return "Sorry, I encountered an error processing your message."
	}
}
