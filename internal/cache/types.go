package cache

import (
	"time"
)

// CacheStats holds cache performance metrics
type CacheStats struct {
	// Current state
	ItemCount int64 // Number of loaded models

	// Performance metrics
	Hits         int64   // Requests served by an already loaded model
	Misses       int64   // Requests that had to wait for a load
	Loads        int64   // Successful model constructions
	LoadFailures int64   // Failed model constructions
	HitRate      float64 // Calculated hit rate (hits / (hits + misses))

	// Timing
	LastLoad    time.Time     // When the last model finished loading
	LoadLatency time.Duration // Total time spent loading models
}

// CacheMetadata describes one loaded model.
type CacheMetadata struct {
	Key      string        // Model identifier
	LoadedAt time.Time     // When the model finished loading
	LoadTime time.Duration // How long construction took
	Hits     int64         // Number of times served from cache
}
