/*
Package main is the entry point for the MU Companion client core.

It is responsible for loading configuration, initializing the global logging system,
optionally starting the embedded development backend, restoring the persisted session,
connecting the chat channel, and gracefully handling operating system interrupt
signals (SIGINT, SIGTERM) to ensure a smooth shutdown.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proedition/mucompanion/internal/app/chat"
	"github.com/proedition/mucompanion/internal/app/session"
	"github.com/proedition/mucompanion/internal/app/store"
	"github.com/proedition/mucompanion/internal/configs"
	"github.com/proedition/mucompanion/internal/devserver"
	"github.com/proedition/mucompanion/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("server_url", cfg.ServerURL).
		Str("state_path", cfg.StatePath).
		Bool("dev_fallback", cfg.DevFallback).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optionally start the embedded development backend.
	var devSrv *devserver.Server
	if cfg.DevListen != "" {
		devSrv = devserver.NewServer(cfg)
		go func() {
			if err := devSrv.Start(); err != nil {
				logx.Fatal(err, "Development backend failed to start")
			}
		}()
	}

	// Open the on-device state store and restore any persisted session.
	st, err := store.OpenFileStore(cfg.StatePath)
	if err != nil {
		logx.Fatal(err, "Failed to open state store", "state_path", cfg.StatePath)
	}

	sessions := session.NewManager(st, nil, cfg.ServerURL, cfg.DevFallback)
	if sessions.Restore() {
		if err := sessions.RefreshUserData(ctx); err != nil {
			logx.Warn("Profile refresh failed on startup. Continuing with persisted identity.")
		}
	} else {
		logx.Info("No persisted session found. Signing in with developer credentials.")
		if err := sessions.Login(ctx, "test", "test"); err != nil {
			logx.Fatal(err, "Sign-in failed")
		}
	}

	// Connect the chat channel for the authenticated identity.
	controller := chat.NewController(chat.Config{
		WebSocketURL:     cfg.ChatWebSocketURL(),
		ServerURL:        cfg.ServerURL,
		MaxMessageLength: cfg.MaxMessageLength,
		ReconnectDelay:   cfg.ReconnectDelay,
		PollInterval:     cfg.PollInterval,
		MaxRetries:       cfg.MaxRetries,
		FloodInterval:    cfg.FloodInterval,
		HistoryLimit:     cfg.HistoryLimit,
	}, sessions.Identity())

	if err := controller.Connect(ctx); err != nil {
		logx.Fatal(err, "Chat connect failed")
	}

	// Consume chat events until shutdown.
	go consumeEvents(controller)

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	controller.Disconnect()

	if devSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()

		if err := devSrv.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "Development backend shutdown error")
		}
	}

	logx.Info("Companion gracefully stopped.")
}

// consumeEvents drains the controller's event stream and logs each event. The
// mobile shells replace this loop with their UI bridges.
func consumeEvents(controller *chat.Controller) {
	for event := range controller.Events() {
		switch event.Type {
		case chat.EventMessage:
			logx.Info("Chat message.",
				"username", event.Message.Username,
				"text", event.Message.Text,
			)

		case chat.EventStats:
			logx.Info("Chat stats.",
				"online", event.Stats.OnlineUsers,
				"total_messages", event.Stats.TotalMessages,
			)

		case chat.EventState:
			logx.Info("Chat state changed.", "state", event.State.String())

		case chat.EventSync:
			logx.Debug("Chat buffer synchronized from polling.")

		case chat.EventError:
			logx.Warn("Chat error.", "message", event.Text)
		}
	}
}
