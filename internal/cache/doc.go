// Package cache provides the Redis-backed session store and the analysis
// event stream consumed by the history worker.
package cache
