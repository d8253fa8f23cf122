package integration

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
)

// mockProfile is one canned upstream account.
type mockProfile struct {
	ID         string
	FullName   string
	IsPrivate  bool
	StoryCount int
}

// mockUpstream simulates the Instagram web API endpoints the client
// talks to.
type mockUpstream struct {
	server       *httptest.Server
	mu           sync.RWMutex
	profiles     map[string]mockProfile
	requestCount int32
}

func newMockUpstream() *mockUpstream {
	m := &mockUpstream{
		profiles: make(map[string]mockProfile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/web_profile_info/", m.handleProfile)
	mux.HandleFunc("/api/v1/feed/reels_media/", m.handleReels)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *mockUpstream) Close() { m.server.Close() }

func (m *mockUpstream) URL() string { return m.server.URL }

func (m *mockUpstream) Requests() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

func (m *mockUpstream) AddProfile(username string, p mockProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[username] = p
}

func (m *mockUpstream) handleProfile(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	username := r.URL.Query().Get("username")
	m.mu.RLock()
	p, ok := m.profiles[username]
	m.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "fail",
			"message": "User not found",
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"requires_to_login": false,
		"status":            "ok",
		"data": map[string]interface{}{
			"user": map[string]interface{}{
				"id":               p.ID,
				"username":         username,
				"full_name":        p.FullName,
				"is_private":       p.IsPrivate,
				"edge_followed_by": map[string]int{"count": 100},
			},
		},
	})
}

func (m *mockUpstream) handleReels(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	reelID := r.URL.Query().Get("reel_ids")
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.profiles {
		if p.ID != reelID {
			continue
		}
		items := make([]map[string]interface{}, p.StoryCount)
		for i := range items {
			items[i] = map[string]interface{}{"id": "media", "media_type": 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"reels_media": []map[string]interface{}{
				{"id": reelID, "items": items},
			},
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"reels_media": []map[string]interface{}{},
	})
}
