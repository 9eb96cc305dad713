// Package redis implements the task store and challenge registry on Redis,
// so several API replicas can share task state and paused sessions.
// Task updates use WATCH/MULTI optimistic transactions; Take uses GETDEL.
package redis
