// Package settings manages the gateway's shared pipeline configuration
// from the client side. Updates are optimistically concurrent: every
// write carries the version the caller last read, and a stale version
// comes back as a conflict outcome rather than an error. A small local
// cache remembers whether the gateway was fully configured so upload
// pre-checks stay cheap; the cache is advisory and the gateway's answer
// always wins.
package settings
