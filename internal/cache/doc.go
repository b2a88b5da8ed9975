// Package cache keeps loaded model instances for the life of the process.
// Each model is constructed at most once; entries are never evicted.
package cache
