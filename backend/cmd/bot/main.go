package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"finquery/backend/internal/discord"
	"finquery/backend/internal/services"
	"finquery/backend/pkg/config"
	"finquery/backend/pkg/logger"
)

// botIntents covers guild messages for mentions and DMs. Message content is
// privileged and has to be enabled for the application as well.
const botIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Discord bot...")

	if cfg.DiscordBotToken == "" {
		log.Fatal("DISCORD_BOT_TOKEN is required")
	}

	svc, err := services.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to build query pipeline", zap.Error(err))
	}
	defer svc.Close()

	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}

	messageHandler := discord.NewHandler(svc.App, cfg.AgentTimeout, log)
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		messageHandler.HandleMessage(s, m)
	})

	dg.Identify.Intents = botIntents
	log.Info("Discord bot intents configured",
		zap.Bool("guild_messages", (dg.Identify.Intents&discordgo.IntentsGuildMessages) != 0),
		zap.Bool("direct_messages", (dg.Identify.Intents&discordgo.IntentsDirectMessages) != 0),
		zap.Bool("message_content", (dg.Identify.Intents&discordgo.IntentsMessageContent) != 0),
	)

	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord connection", zap.Error(err))
	}
	defer dg.Close()

	log.Info("Discord bot is running. Press CTRL-C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-quit

	log.Info("Shutting down Discord bot...")
}
