package ledger

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"asylum-lite/apps/server/internal/store"
)

const (
	defaultRecentLimit = 50
	defaultSavedLimit  = 20
)

type Source string

const (
	SourceLive   Source = "live"
	SourceReplay Source = "replay"
)

func ParseSource(raw string) (Source, bool) {
	switch Source(raw) {
	case "", SourceLive:
		return SourceLive, true
	case SourceReplay:
		return SourceReplay, true
	}
	return "", false
}

var (
	ErrNotFound        = errors.New("not found")
	ErrSavedLimitReach = errors.New("saved session limit reached")
)

// Service records session event streams and per-account history.
type Service interface {
	Close() error
	AppendLiveEvent(sessionID string, e EventItem)
	UpsertLiveHistory(accountID uint64, sessionID string, playedAt time.Time, summary map[string]any)
	UpsertReplaySession(ctx context.Context, accountID uint64, sessionID string, events []EventItem, summary map[string]any) error
	ListRecent(ctx context.Context, accountID uint64, source Source, limit int) ([]HistoryItem, error)
	GetSessionEvents(ctx context.Context, accountID uint64, source Source, sessionID string) ([]EventItem, error)
	SetSaved(ctx context.Context, accountID uint64, source Source, sessionID string, saved bool) error
}

type HistoryItem struct {
	SessionID string         `json:"session_id"`
	Source    Source         `json:"source"`
	PlayedAt  time.Time      `json:"played_at"`
	IsSaved   bool           `json:"is_saved"`
	SavedAt   *time.Time     `json:"saved_at,omitempty"`
	Summary   map[string]any `json:"summary"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
	ServerTsMs  *int64 `json:"server_ts_ms,omitempty"`
}

// NewService returns the SQL ledger for a configured database, or a no-op one.
func NewService(db *store.DB, recentLimit, cacheSize int) (Service, string, error) {
	if db == nil {
		return &noopService{}, "memory-noop", nil
	}
	svc, err := NewSQLService(db, recentLimit, defaultSavedLimit)
	if err != nil {
		return nil, "", err
	}
	if cacheSize <= 0 {
		return svc, string(db.Dialect), nil
	}
	cached, err := newCachedService(svc, cacheSize)
	if err != nil {
		return nil, "", err
	}
	return cached, string(db.Dialect) + "+lru", nil
}

type noopService struct{}

func (n *noopService) Close() error                                                     { return nil }
func (n *noopService) AppendLiveEvent(_ string, _ EventItem)                            {}
func (n *noopService) UpsertLiveHistory(_ uint64, _ string, _ time.Time, _ map[string]any) {}

func (n *noopService) UpsertReplaySession(_ context.Context, _ uint64, _ string, _ []EventItem, _ map[string]any) error {
	return nil
}

func (n *noopService) ListRecent(_ context.Context, _ uint64, _ Source, _ int) ([]HistoryItem, error) {
	return []HistoryItem{}, nil
}

func (n *noopService) GetSessionEvents(_ context.Context, _ uint64, _ Source, _ string) ([]EventItem, error) {
	return nil, ErrNotFound
}

func (n *noopService) SetSaved(_ context.Context, _ uint64, _ Source, _ string, _ bool) error {
	return ErrNotFound
}

type eventsKey struct {
	accountID uint64
	source    Source
	sessionID string
}

// cachedService keeps recently read event lists; writes to a session evict it.
type cachedService struct {
	Service
	events *lru.Cache[eventsKey, []EventItem]
}

func newCachedService(inner Service, size int) (*cachedService, error) {
	c, err := lru.New[eventsKey, []EventItem](size)
	if err != nil {
		return nil, err
	}
	return &cachedService{Service: inner, events: c}, nil
}

func (c *cachedService) evictSession(source Source, sessionID string) {
	for _, k := range c.events.Keys() {
		if k.source == source && k.sessionID == sessionID {
			c.events.Remove(k)
		}
	}
}

func (c *cachedService) AppendLiveEvent(sessionID string, e EventItem) {
	c.Service.AppendLiveEvent(sessionID, e)
	c.evictSession(SourceLive, sessionID)
}

func (c *cachedService) UpsertReplaySession(ctx context.Context, accountID uint64, sessionID string, events []EventItem, summary map[string]any) error {
	err := c.Service.UpsertReplaySession(ctx, accountID, sessionID, events, summary)
	c.evictSession(SourceReplay, sessionID)
	return err
}

func (c *cachedService) GetSessionEvents(ctx context.Context, accountID uint64, source Source, sessionID string) ([]EventItem, error) {
	key := eventsKey{accountID: accountID, source: source, sessionID: sessionID}
	if events, ok := c.events.Get(key); ok {
		return events, nil
	}
	events, err := c.Service.GetSessionEvents(ctx, accountID, source, sessionID)
	if err != nil {
		return nil, err
	}
	c.events.Add(key, events)
	log.WithField("session", sessionID).Debugf("[Ledger] cached %d events", len(events))
	return events, nil
}
