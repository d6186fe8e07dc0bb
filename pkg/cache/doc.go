// Package cache provides the optional response cache in front of the router.
//
// Cache keys are SHA-256 digests of the RFC 8785 canonical JSON form of the
// request fields that determine a response: target, model, messages and
// sampling parameters. Request ids, deadlines, callers and metadata are
// excluded, so two identical prompts share an entry.
//
// Sensitive requests never touch the cache. Cache.Get and Cache.Put return
// before computing a key or reaching the Store when Request.Sensitive is set.
//
// Two Store implementations are provided: MemoryStore (TTL plus LRU eviction,
// single process) and RedisStore (shared across gateway instances).
package cache
