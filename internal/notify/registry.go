package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Endpoint is a webhook subscriber. An endpoint with no topics receives
// every event.
type Endpoint struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Topics    []string  `json:"topics"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry holds webhook endpoints in memory.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID]Endpoint
}

// NewRegistry returns an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[uuid.UUID]Endpoint)}
}

// Add stores an endpoint, assigning an ID when missing.
func (r *Registry) Add(ep Endpoint) Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now().UTC()
	}
	r.endpoints[ep.ID] = ep
	return ep
}

// Remove deletes an endpoint. It reports whether the endpoint existed.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.endpoints[id]; !ok {
		return false
	}
	delete(r.endpoints, id)
	return true
}

// List returns all endpoints ordered by creation time.
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ForTopic returns the active endpoints subscribed to the topic.
func (r *Registry) ForTopic(topic string) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Endpoint
	for _, ep := range r.endpoints {
		if !ep.Active {
			continue
		}
		if len(ep.Topics) == 0 {
			out = append(out, ep)
			continue
		}
		for _, t := range ep.Topics {
			if t == topic {
				out = append(out, ep)
				break
			}
		}
	}
	return out
}
