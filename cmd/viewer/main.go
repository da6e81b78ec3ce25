package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/bsekhosana/sechat-app-sub011/internal"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.ToolConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (the engine)
	// holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Start the inspect server only; the engine isn't running here
	stats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	fmt.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)

	internal.StartDebugServer(db, config.DebugPort, "/inspect", conversationMapper, stats)
	select {}
}

// conversationMapper renders conversation and message rows with their
// domain fields instead of raw byte sizes.
func conversationMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	switch {
	case len(key) > 5 && key[:5] == "conv:":
		var conv struct {
			ID                 string    `json:"id"`
			LastMessagePreview string    `json:"lastMessagePreview"`
			LastMessageAt      time.Time `json:"lastMessageAt"`
			UnreadCount        int       `json:"unreadCount"`
		}
		if err := json.Unmarshal(val, &conv); err != nil {
			return row
		}
		row.Type = "CONV"
		row.EntityID = conv.ID
		row.Timestamp = conv.LastMessageAt.Format("15:04:05")
		row.Detail = fmt.Sprintf("unread=%d %s", conv.UnreadCount, conv.LastMessagePreview)

	case len(key) > 4 && key[:4] == "msg:":
		var msg struct {
			ID       string `json:"id"`
			SenderID string `json:"senderId"`
			Status   string `json:"status"`
		}
		if err := json.Unmarshal(val, &msg); err != nil {
			return row
		}
		row.Type = "MSG"
		row.Detail = fmt.Sprintf("from=%s status=%s", msg.SenderID, msg.Status)
	}
	return row
}
