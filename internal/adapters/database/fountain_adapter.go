package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// FountainAdapter implements the FountainRepository interface
type FountainAdapter struct {
	db queryer
}

var _ repositories.FountainRepository = (*FountainAdapter)(nil)

// NewFountainAdapter creates a new fountain adapter
func NewFountainAdapter(db queryer) *FountainAdapter {
	return &FountainAdapter{db: db}
}

func fountainRecord(f *entities.Fountain) goqu.Record {
	rec := goqu.Record{
		"address":                f.Address,
		"latitude":               f.Latitude,
		"longitude":              f.Longitude,
		"dog_friendly":           f.DogFriendly,
		"bottle_refill":          f.BottleRefill,
		"type":                   string(f.Type),
		"average_general_rating": f.AverageGeneralRating,
		"number_of_ratings":      f.NumberOfRatings,
		"last_updated":           f.LastUpdated,
		"status":                 string(f.Status),
		"submitted_by":           f.SubmittedBy,
		"description":            f.Description,
	}
	if f.ID != 0 {
		rec["id"] = f.ID
	}
	return rec
}

// Create creates a new fountain
func (a *FountainAdapter) Create(ctx context.Context, fountain *entities.Fountain) error {
	rec := fountainRecord(fountain)

	if fountain.ID != 0 {
		if _, err := a.db.Insert(tableFountains).Rows(rec).Executor().ExecContext(ctx); err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewConflictError(fmt.Sprintf("fountain with id %d already exists", fountain.ID))
			}
			return fmt.Errorf("failed to create fountain: %w", err)
		}
		return a.syncSequence(ctx)
	}

	id, err := insertReturningID(ctx, a.db, tableFountains, rec)
	if err != nil {
		return fmt.Errorf("failed to create fountain: %w", err)
	}
	fountain.ID = id
	return nil
}

// syncSequence moves the postgres id sequence past externally assigned ids
func (a *FountainAdapter) syncSequence(ctx context.Context) error {
	if a.db.Dialect() != "postgres" {
		return nil
	}
	_, err := a.db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('fountains', 'id'), GREATEST((SELECT MAX(id) FROM fountains), 1))`)
	if err != nil {
		return fmt.Errorf("failed to sync fountain id sequence: %w", err)
	}
	return nil
}

// GetByID retrieves a fountain by ID
func (a *FountainAdapter) GetByID(ctx context.Context, id int64) (*entities.Fountain, error) {
	return a.get(ctx, a.db.From(tableFountains).Where(goqu.Ex{"id": id}), id)
}

// GetForUpdate retrieves a fountain and locks its row for the rest of the transaction.
// On sqlite the write lock is already held from BEGIN IMMEDIATE.
func (a *FountainAdapter) GetForUpdate(ctx context.Context, id int64) (*entities.Fountain, error) {
	return a.get(ctx, a.db.From(tableFountains).Where(goqu.Ex{"id": id}).ForUpdate(exp.Wait), id)
}

func (a *FountainAdapter) get(ctx context.Context, ds *goqu.SelectDataset, id int64) (*entities.Fountain, error) {
	var fountain entities.Fountain
	found, err := ds.ScanStructContext(ctx, &fountain)
	if err != nil {
		return nil, fmt.Errorf("failed to get fountain: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("fountain with id %d not found", id))
	}
	return &fountain, nil
}

// GetByIDs retrieves fountains keeping the order of ids
func (a *FountainAdapter) GetByIDs(ctx context.Context, ids []int64) ([]*entities.Fountain, error) {
	if len(ids) == 0 {
		return []*entities.Fountain{}, nil
	}
	var rows []*entities.Fountain
	if err := a.db.From(tableFountains).Where(goqu.C("id").In(ids)).ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to get fountains: %w", err)
	}
	byID := make(map[int64]*entities.Fountain, len(rows))
	for _, f := range rows {
		byID[f.ID] = f
	}
	ordered := make([]*entities.Fountain, 0, len(rows))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

// Exists reports whether a fountain with id is stored
func (a *FountainAdapter) Exists(ctx context.Context, id int64) (bool, error) {
	var found int64
	ok, err := a.db.From(tableFountains).Select(goqu.C("id")).Where(goqu.Ex{"id": id}).ScanValContext(ctx, &found)
	if err != nil {
		return false, fmt.Errorf("failed to check fountain: %w", err)
	}
	return ok, nil
}

// ApplyChanges writes the changed columns and last_updated
func (a *FountainAdapter) ApplyChanges(ctx context.Context, id int64, changes entities.FountainChanges, lastUpdated time.Time) error {
	rec := goqu.Record{"last_updated": lastUpdated}
	if changes.Address != nil {
		rec["address"] = *changes.Address
	}
	if changes.Latitude != nil {
		rec["latitude"] = *changes.Latitude
	}
	if changes.Longitude != nil {
		rec["longitude"] = *changes.Longitude
	}
	if changes.DogFriendly != nil {
		rec["dog_friendly"] = *changes.DogFriendly
	}
	if changes.BottleRefill != nil {
		rec["bottle_refill"] = *changes.BottleRefill
	}
	if changes.Type != nil {
		rec["type"] = string(*changes.Type)
	}
	if changes.Status != nil {
		rec["status"] = string(*changes.Status)
	}
	if changes.Description != nil {
		rec["description"] = *changes.Description
	}

	res, err := a.db.Update(tableFountains).Set(rec).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update fountain: %w", err)
	}
	return affectedOne(res, "fountain", id)
}

// SetRating writes the derived rating fields
func (a *FountainAdapter) SetRating(ctx context.Context, id int64, aggregate entities.RatingAggregate, lastUpdated time.Time) error {
	res, err := a.db.Update(tableFountains).Set(goqu.Record{
		"average_general_rating": aggregate.Average,
		"number_of_ratings":      aggregate.Count,
		"last_updated":           lastUpdated,
	}).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update fountain rating: %w", err)
	}
	return affectedOne(res, "fountain", id)
}

// FindNearest orders by (longitude-x)^2 + (latitude-y)^2, then id
func (a *FountainAdapter) FindNearest(ctx context.Context, longitude, latitude float64, limit int) ([]*entities.Fountain, error) {
	distance := goqu.L(
		"(longitude - (?)) * (longitude - (?)) + (latitude - (?)) * (latitude - (?))",
		longitude, longitude, latitude, latitude,
	)

	fountains := []*entities.Fountain{}
	err := a.db.From(tableFountains).
		Order(distance.Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		ScanStructsContext(ctx, &fountains)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest fountains: %w", err)
	}
	return fountains, nil
}

// Count returns the number of stored fountains
func (a *FountainAdapter) Count(ctx context.Context) (int64, error) {
	n, err := a.db.From(tableFountains).CountContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count fountains: %w", err)
	}
	return n, nil
}

// List pages through fountains ordered by id
func (a *FountainAdapter) List(ctx context.Context, limit, offset int) ([]*entities.Fountain, error) {
	fountains := []*entities.Fountain{}
	err := a.db.From(tableFountains).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ScanStructsContext(ctx, &fountains)
	if err != nil {
		return nil, fmt.Errorf("failed to list fountains: %w", err)
	}
	return fountains, nil
}

// SearchByAddress matches a case-insensitive substring of the address or description
func (a *FountainAdapter) SearchByAddress(ctx context.Context, query string, limit int) ([]*entities.Fountain, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	fountains := []*entities.Fountain{}
	err := a.db.From(tableFountains).
		Where(goqu.Or(
			goqu.Func("LOWER", goqu.C("address")).Like(pattern),
			goqu.Func("LOWER", goqu.C("description")).Like(pattern),
		)).
		Order(goqu.C("number_of_ratings").Desc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		ScanStructsContext(ctx, &fountains)
	if err != nil {
		return nil, fmt.Errorf("failed to search fountains: %w", err)
	}
	return fountains, nil
}
