package services

import (
	"context"
	"strings"
	"time"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

const (
	DefaultNearestLimit = 10
	MaxNearestLimit     = 500
	DefaultSearchLimit  = 20
)

// FountainCache hides every cached copy of a fountain, its record and its HTTP responses, after
// a committed write. The manager calls it before returning so the writer reads its own write.
type FountainCache interface {
	Invalidate(ctx context.Context, id int64) error
}

// FountainManager maintains fountains and the state derived from their reviews, reports and photos.
// Every multi-step write runs inside one store transaction; search indexing, cache invalidation and
// event publishing happen after commit and never fail the operation.
type FountainManager struct {
	store        repositories.Store
	blobs        providers.BlobStore
	search       providers.SearchIndex
	events       providers.EventBus
	geo          providers.GeolocationProvider
	cache        FountainCache
	metrics      *observability.Metrics
	maxPhotoSize int64
	now          func() time.Time
}

// NewFountainManager creates a manager over store and blobs
func NewFountainManager(store repositories.Store, blobs providers.BlobStore) *FountainManager {
	return &FountainManager{
		store:        store,
		blobs:        blobs,
		maxPhotoSize: entities.MaxPhotoSize,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// WithSearch indexes fountains after writes and serves Search from the index
func (m *FountainManager) WithSearch(search providers.SearchIndex) *FountainManager {
	m.search = search
	return m
}

// WithEvents publishes fountain events after writes
func (m *FountainManager) WithEvents(events providers.EventBus) *FountainManager {
	m.events = events
	return m
}

// WithGeolocation fills blank addresses of new fountains
func (m *FountainManager) WithGeolocation(geo providers.GeolocationProvider) *FountainManager {
	m.geo = geo
	return m
}

// WithFountainCache invalidates cached fountains after writes
func (m *FountainManager) WithFountainCache(cache FountainCache) *FountainManager {
	m.cache = cache
	return m
}

// WithMetrics records review submissions
func (m *FountainManager) WithMetrics(metrics *observability.Metrics) *FountainManager {
	m.metrics = metrics
	return m
}

// WithMaxPhotoSize overrides the upload size bound
func (m *FountainManager) WithMaxPhotoSize(n int64) *FountainManager {
	if n > 0 {
		m.maxPhotoSize = n
	}
	return m
}

// Store returns the record store the manager writes to
func (m *FountainManager) Store() repositories.Store {
	return m.store
}

// CreateFountain stores a new fountain. With a submitter the record is a fresh user submission;
// without one it is an import-path record that may carry an explicit id.
func (m *FountainManager) CreateFountain(ctx context.Context, in entities.FountainInput, submitter *entities.User) (*entities.Fountain, error) {
	ctx, span := observability.StartSpan(ctx, "FountainManager.CreateFountain")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	f := &entities.Fountain{
		Address:      in.Address,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		DogFriendly:  in.DogFriendly,
		BottleRefill: in.BottleRefill,
		Type:         in.Type,
		Status:       in.Status,
		Description:  in.Description,
		LastUpdated:  m.now(),
	}
	if submitter != nil {
		id := submitter.ID
		f.SubmittedBy = &id
		f.Status = entities.FountainStatusUserSubmitted
	} else {
		if in.ID != nil {
			f.ID = *in.ID
		}
		if f.Status == "" {
			f.Status = entities.FountainStatusVerified
		}
	}

	if f.Address == "" && m.geo != nil {
		if addr, err := m.geo.ReverseGeocode(ctx, f.Latitude, f.Longitude); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("reverse geocoding failed; storing fountain without address")
		} else if addr != nil {
			f.Address = addr.FormattedAddress
		}
	}

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		return tx.Fountains().Create(ctx, f)
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.AsStorage("failed to create fountain", err)
	}

	m.afterWrite(ctx, f, entities.FountainEventCreated, nil)
	return f, nil
}

// UpdateFountain replaces the attributes of a fountain. Only differing fields are written; when
// nothing differs the stored record is returned untouched and changed is empty.
func (m *FountainManager) UpdateFountain(ctx context.Context, id int64, in entities.FountainInput) (fountain *entities.Fountain, changed []string, err error) {
	ctx, span := observability.StartSpan(ctx, "FountainManager.UpdateFountain")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	var changes entities.FountainChanges
	err = m.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		current, err := tx.Fountains().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		fountain = current

		changes = entities.DiffFountain(current, in)
		if changes.Empty() {
			return nil
		}
		now := m.now()
		if err := tx.Fountains().ApplyChanges(ctx, id, changes, now); err != nil {
			return err
		}
		changes.Apply(current)
		current.LastUpdated = now
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, nil, apperrors.AsStorage("failed to update fountain", err)
	}

	changed = changes.Fields()
	if len(changed) == 0 {
		return fountain, nil, nil
	}

	fields := make(map[string]interface{}, len(changed))
	for _, name := range changed {
		fields[name] = true
	}
	m.afterWrite(ctx, fountain, entities.FountainEventUpdated, fields)
	return fountain, changed, nil
}

// GetFountain retrieves a fountain by id
func (m *FountainManager) GetFountain(ctx context.Context, id int64) (*entities.Fountain, error) {
	f, err := m.store.Fountains().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.AsStorage("failed to load fountain", err)
	}
	return f, nil
}

// FindNearest returns up to limit fountains ordered by squared lon/lat distance to the point,
// together with the total number of fountains.
func (m *FountainManager) FindNearest(ctx context.Context, longitude, latitude float64, limit int) (*entities.NearestResult, error) {
	ctx, span := observability.StartSpan(ctx, "FountainManager.FindNearest")
	defer span.End()

	if err := entities.ValidateCoordinates(longitude, latitude); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultNearestLimit
	}
	if limit > MaxNearestLimit {
		limit = MaxNearestLimit
	}

	items, err := m.store.Fountains().FindNearest(ctx, longitude, latitude, limit)
	if err != nil {
		return nil, apperrors.AsStorage("failed to find nearest fountains", err)
	}
	total, err := m.store.Fountains().Count(ctx)
	if err != nil {
		return nil, apperrors.AsStorage("failed to count fountains", err)
	}
	return &entities.NearestResult{Items: items, Total: total, Limit: limit}, nil
}

// Search matches fountains by text. The search index is used when configured; the address
// substring match in the store serves when it is not or when it fails.
func (m *FountainManager) Search(ctx context.Context, query string, limit int) ([]*entities.Fountain, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("query must not be empty")
	}
	if limit <= 0 || limit > MaxNearestLimit {
		limit = DefaultSearchLimit
	}

	if m.search != nil {
		ids, err := m.search.Search(ctx, query, limit)
		if err == nil {
			fountains, err := m.store.Fountains().GetByIDs(ctx, ids)
			if err != nil {
				return nil, apperrors.AsStorage("failed to load search results", err)
			}
			return fountains, nil
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("query", query).Msg("search index unavailable, falling back to address match")
	}

	fountains, err := m.store.Fountains().SearchByAddress(ctx, query, limit)
	if err != nil {
		return nil, apperrors.AsStorage("failed to search fountains", err)
	}
	return fountains, nil
}

// afterWrite runs the best-effort side effects of a committed fountain write
func (m *FountainManager) afterWrite(ctx context.Context, f *entities.Fountain, eventType entities.FountainEventType, fields map[string]interface{}) {
	logger := observability.LoggerFromContext(ctx)

	m.invalidate(ctx, f.ID)
	if m.search != nil {
		if err := m.search.IndexFountain(ctx, f); err != nil {
			logger.Warn().Err(err).Int64("fountain_id", f.ID).Msg("failed to index fountain")
		}
	}
	m.publish(ctx, entities.NewFountainEvent(f, eventType, fields))
}

func (m *FountainManager) invalidate(ctx context.Context, fountainID int64) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx, fountainID); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Int64("fountain_id", fountainID).Msg("failed to invalidate fountain cache")
	}
}

func (m *FountainManager) publish(ctx context.Context, event *entities.FountainEvent) {
	if m.events == nil {
		return
	}
	if err := providers.PublishFountainEvent(ctx, m.events, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Int64("fountain_id", event.FountainID).
			Str("event_type", string(event.EventType)).
			Msg("failed to publish fountain event")
	}
}
