package utils

import "time"

// Transaction Constants
const (
	DefaultTxTimeout = 30 * time.Second       // Default transaction timeout
	MaxTxRetries     = 3                      // Attempts per conflicting transaction
	TxRetryBackoff   = 100 * time.Millisecond // Base delay between retries
)

// Expiry Sweep Constants
const (
	SweepItemTimeout = 30 * time.Second       // Per-auction close timeout
	SweepItemPause   = 100 * time.Millisecond // Pause between closes
)

// Reconciliation Constants
const (
	ReconcileParallelism = 4 // Concurrent wallet checks
)
