// Package catalog loads the insurance type / coverage type catalog,
// keyed by the session's access token.
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/api"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
)

type CoverageType struct {
	ID              int    `json:"id"`
	InsuranceTypeID int    `json:"insurance_type_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
}

type InsuranceType struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	CoverageTypes []CoverageType `json:"coverage_types"`
}

// Snapshot is the loader's externally visible state.
type Snapshot struct {
	InsuranceTypes []InsuranceType
	Loading        bool
	Err            string
}

type Loader struct {
	mu        sync.Mutex
	types     []InsuranceType
	loading   bool
	errMsg    string
	lastToken string

	api      *api.Client
	notifier notify.Notifier
	log      *zap.SugaredLogger
}

func NewLoader(client *api.Client, notifier notify.Notifier, log *zap.SugaredLogger) *Loader {
	return &Loader{api: client, notifier: notifier, log: log, loading: true}
}

// OnToken reacts to an access-token change. An empty token
// short-circuits to an error state without a network call; a new token
// value triggers a fetch.
func (l *Loader) OnToken(ctx context.Context, token string) {
	if token == "" {
		l.mu.Lock()
		l.loading = false
		l.errMsg = "No access token available"
		l.lastToken = ""
		l.mu.Unlock()
		notify.Failure(l.notifier, "Please log in to view insurance types")
		return
	}

	l.mu.Lock()
	if token == l.lastToken {
		l.mu.Unlock()
		return
	}
	l.lastToken = token
	l.loading = true
	l.mu.Unlock()

	l.fetch(ctx, token)
}

func (l *Loader) fetch(ctx context.Context, token string) {
	raw, err := l.api.DoJSON(ctx, http.MethodGet, "/api/insurance_types", nil, token)
	if err != nil {
		msg := api.Message(err, "Failed to fetch insurance types")
		l.mu.Lock()
		l.loading = false
		l.errMsg = msg
		l.mu.Unlock()
		notify.Failure(l.notifier, msg)
		return
	}
	var types []InsuranceType
	if err := json.Unmarshal(raw, &types); err != nil {
		msg := "Failed to fetch insurance types"
		l.mu.Lock()
		l.loading = false
		l.errMsg = msg
		l.mu.Unlock()
		l.log.Warnw("catalog decode failed", "err", err)
		notify.Failure(l.notifier, msg)
		return
	}
	l.mu.Lock()
	l.types = types
	l.loading = false
	l.errMsg = ""
	l.mu.Unlock()
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]InsuranceType, len(l.types))
	copy(out, l.types)
	return Snapshot{InsuranceTypes: out, Loading: l.loading, Err: l.errMsg}
}

// FindByName resolves an insurance type by case-insensitive name.
func (l *Loader) FindByName(name string) (InsuranceType, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.types {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return InsuranceType{}, false
}

func (l *Loader) FindByID(id int) (InsuranceType, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.types {
		if t.ID == id {
			return t, true
		}
	}
	return InsuranceType{}, false
}
