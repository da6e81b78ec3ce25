package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/bsekhosana/sechat-app-sub011/auth"
	"github.com/bsekhosana/sechat-app-sub011/dedup"
	"github.com/bsekhosana/sechat-app-sub011/delivery"
	"github.com/bsekhosana/sechat-app-sub011/envelope"
	"github.com/bsekhosana/sechat-app-sub011/gateway"
	"github.com/bsekhosana/sechat-app-sub011/repositories"
	"github.com/bsekhosana/sechat-app-sub011/runtime"
	"github.com/bsekhosana/sechat-app-sub011/runtime/workers"
	"github.com/bsekhosana/sechat-app-sub011/syncer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the engine lifecycle, and
// centralizes error reporting so every defer (database close, gateway
// teardown) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core components, constructed explicitly and injected: nothing in
	// the engine is a process-wide singleton.
	store := repositories.NewStore(db, log, config.LimitMessages)

	decryptor, err := envelope.NewDecryptor(config.SharedSecret)
	if err != nil {
		return fmt.Errorf("envelope setup failed: %w", err)
	}
	codec := envelope.NewCodec(log, decryptor)

	notifier := newLogNotifier(log)
	conversations := syncer.NewSyncer(log, store, codec, notifier, config.SessionID)
	if err = conversations.Load(); err != nil {
		return fmt.Errorf("conversation cache load failed: %w", err)
	}

	gw := gateway.New(log, gateway.NewWebsocketDialer(), config.ConnectionBufferSize)
	loop := runtime.NewLoop(log, config.BufferSize)
	tracker := delivery.NewTracker(log, gw, loop, notifier,
		config.AckTimeout, config.RetryDelay, config.MaxRetries)
	cache := dedup.New(config.DedupCapacity)
	engine := runtime.NewEngine(log, loop, gw, cache, tracker, conversations, config.SessionID)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Connect the gateway; the registration handshake carries a signed
	// session token.
	minter := auth.NewTokenMinter(config.AuthSecret, config.AuthTokenDuration)
	token, err := minter.Mint(config.SessionID)
	if err != nil {
		return fmt.Errorf("session token minting failed: %w", err)
	}
	gw.Connect(ctx, config.Endpoint, config.SessionID, map[string]string{"authToken": token})
	defer gw.Disconnect()

	// 6. Supervision: the engine loop and the keepalive run until a signal
	// arrives.
	keepalive := workers.NewKeepaliveWorker(log, gw, config.KeepaliveInterval)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(engine, keepalive)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}

// logNotifier is the placeholder UI collaborator: re-render requests and
// terminal failures end up in the log until a real frontend subscribes.
type logNotifier struct {
	log *slog.Logger
}

func newLogNotifier(log *slog.Logger) *logNotifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) ConversationChanged(conversationID string) {
	n.log.Debug("Conversation changed", "conversationId", conversationID)
}

func (n *logNotifier) MessageFailed(messageID string) {
	n.log.Warn("Message failed permanently", "messageId", messageID)
}
