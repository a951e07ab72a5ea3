package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mailfeed/internal/models"
)

func consumerIDs(cs []models.Consumer) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestRegistry_FindMatching(t *testing.T) {
	msg := &models.Message{
		FromAddress: "a@x.com",
		Subject:     "Invoice for March",
		TextContent: "please find the report attached",
	}

	tests := []struct {
		name    string
		rules   models.FilterRules
		matched bool
	}{
		{
			name:    "no rules matches everything",
			matched: true,
		},
		{
			name:    "exact from match",
			rules:   models.FilterRules{FromEmail: []string{"a@x.com"}},
			matched: true,
		},
		{
			name:    "from mismatch",
			rules:   models.FilterRules{FromEmail: []string{"b@x.com"}},
			matched: false,
		},
		{
			name:    "or within from category",
			rules:   models.FilterRules{FromEmail: []string{"b@x.com", "a@x.com"}},
			matched: true,
		},
		{
			name:    "subject substring",
			rules:   models.FilterRules{SubjectContains: []string{"Invoice"}},
			matched: true,
		},
		{
			name:    "subject match is case sensitive",
			rules:   models.FilterRules{SubjectContains: []string{"invoice"}},
			matched: false,
		},
		{
			name:    "body substring",
			rules:   models.FilterRules{BodyContains: []string{"report"}},
			matched: true,
		},
		{
			name: "and across categories",
			rules: models.FilterRules{
				FromEmail:       []string{"a@x.com"},
				SubjectContains: []string{"Invoice"},
				BodyContains:    []string{"report"},
			},
			matched: true,
		},
		{
			name: "one failing category fails the whole match",
			rules: models.FilterRules{
				FromEmail:       []string{"a@x.com"},
				SubjectContains: []string{"Receipt"},
			},
			matched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			r.Register(models.Consumer{ID: "c1", FilterRules: tt.rules})

			got := r.FindMatching(msg)
			if tt.matched {
				assert.Equal(t, []string{"c1"}, consumerIDs(got))
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestRegistry_BodyFallsBackToHTML(t *testing.T) {
	r := New()
	r.Register(models.Consumer{ID: "c1", FilterRules: models.FilterRules{
		BodyContains: []string{"hello"},
	}})

	msg := &models.Message{HTMLContent: "<p>hello world</p>"}
	assert.Len(t, r.FindMatching(msg), 1)
}

func TestRegistry_ReRegisterOverwrites(t *testing.T) {
	r := New()
	r.Register(models.Consumer{ID: "c1", WebhookURL: "http://old"})
	r.Register(models.Consumer{ID: "c1", WebhookURL: "http://new"})

	require.Equal(t, 1, r.Len())
	c, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "http://new", c.WebhookURL)
}

func TestRegistry_ConcurrentRegisterAndMatch(t *testing.T) {
	r := New()
	msg := &models.Message{FromAddress: "a@x.com"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(models.Consumer{ID: fmt.Sprintf("c%d", i)})
		}()
		go func() {
			defer wg.Done()
			r.FindMatching(msg)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
