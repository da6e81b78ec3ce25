package main

import "time"

type Config struct {
	Endpoint             string        `env:"RELAY_ENDPOINT,required=true"`
	SessionID            string        `env:"SESSION_ID,required=true"`
	SharedSecret         string        `env:"ENVELOPE_SECRET,required=true"`
	AuthSecret           string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AckTimeout           time.Duration `env:"ACK_TIMEOUT,default=10s"`
	RetryDelay           time.Duration `env:"RETRY_DELAY,default=5s"`
	MaxRetries           int           `env:"MAX_RETRIES,default=4"`
	DedupCapacity        int           `env:"DEDUP_CAPACITY,default=500"`
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	KeepaliveInterval    time.Duration `env:"KEEPALIVE_INTERVAL,default=30s"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
}
