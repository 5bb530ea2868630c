package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// quotaWindow tracks one client's spend inside the current window.
type quotaWindow struct {
	spent   int
	resetAt time.Time
}

type quota struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	now     func() time.Time
	clients map[string]*quotaWindow
}

// allow records one generation attempt for the client. When the quota is
// exhausted it reports how long the client has to wait for a fresh window.
func (q *quota) allow(client string) (bool, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	w, found := q.clients[client]
	if !found || !now.Before(w.resetAt) {
		w = &quotaWindow{resetAt: now.Add(q.per)}
		q.clients[client] = w
	}
	if w.spent >= q.limit {
		return false, w.resetAt.Sub(now)
	}
	w.spent++
	return true, 0
}

// GenerationQuota caps how many generation requests one client may spend per
// window. Only the endpoints that burn provider credit sit behind it; reads
// and session bookkeeping are never limited. Exhausted clients get a 429
// with a Retry-After hint.
func GenerationQuota(limit int, per time.Duration) func(http.Handler) http.Handler {
	q := &quota{limit: limit, per: per, now: time.Now, clients: map[string]*quotaWindow{}}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := q.allow(ClientIP(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"generation quota exhausted"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
