// Package registry keeps the set of registered downstream consumers and
// matches newly persisted messages against their filter rules.
package registry

import (
	"strings"
	"sync"

	"github.com/yourusername/mailfeed/internal/models"
)

// Registry holds registered consumers for the process lifetime.
// Registering with an existing id overwrites the previous entry.
type Registry struct {
	mu        sync.RWMutex
	consumers map[string]models.Consumer
}

func New() *Registry {
	return &Registry{consumers: make(map[string]models.Consumer)}
}

// Register stores or replaces a consumer by its id.
func (r *Registry) Register(c models.Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers[c.ID] = c
}

// Get returns a consumer by id.
func (r *Registry) Get(id string) (models.Consumer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consumers[id]
	return c, ok
}

// Len reports how many consumers are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consumers)
}

// FindMatching returns every consumer whose rules accept the message.
// Order of the result is unspecified.
func (r *Registry) FindMatching(msg *models.Message) []models.Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.Consumer
	for _, c := range r.consumers {
		if matches(msg, c.FilterRules) {
			matched = append(matched, c)
		}
	}
	return matched
}

// matches applies the three rule categories: an empty category is no
// constraint, a non-empty one needs at least one matching term, and all
// present categories must be satisfied.
func matches(msg *models.Message, rules models.FilterRules) bool {
	if len(rules.FromEmail) > 0 {
		if !containsExact(rules.FromEmail, msg.FromAddress) {
			return false
		}
	}

	if len(rules.SubjectContains) > 0 {
		if !containsSubstring(rules.SubjectContains, msg.Subject) {
			return false
		}
	}

	if len(rules.BodyContains) > 0 {
		if !containsSubstring(rules.BodyContains, msg.Body()) {
			return false
		}
	}

	return true
}

func containsExact(terms []string, value string) bool {
	for _, t := range terms {
		if t == value {
			return true
		}
	}
	return false
}

func containsSubstring(terms []string, value string) bool {
	for _, t := range terms {
		if strings.Contains(value, t) {
			return true
		}
	}
	return false
}
