package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// WebSocket connection settings
const (
	WSWriteTimeout  = 10 * time.Second
	WSPongTimeout   = 60 * time.Second
	WSPingInterval  = 30 * time.Second
	WSSendBuffer    = 64
	WSMaxFrameBytes = 8 << 20 // fits a 5MB image after base64 expansion
)
