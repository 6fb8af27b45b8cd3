package http

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window limiter per client IP.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:       limit,
		window:      window,
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries(time.Now())
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops clients idle for more than ten windows.
func (rl *rateLimiter) cleanupStaleEntries(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-10 * rl.window)
	for ip, client := range rl.clients {
		if client.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	return rl.allowAt(clientIP, time.Now())
}

func (rl *rateLimiter) allowAt(clientIP string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.windowStart) > rl.window {
		rl.clients[clientIP] = &clientInfo{windowStart: now, requests: 1}
		return true
	}

	client.requests++
	return client.requests <= rl.limit
}
