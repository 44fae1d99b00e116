package usecase

import (
	"context"
	"fmt"
	"sync"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/docpath"
	"transit-console/internal/shared/logger"

	"golang.org/x/sync/errgroup"
)

// DefaultConductorConcurrency is how many conductors are walked or restored at once.
const DefaultConductorConcurrency = 4

// ConductorTreeWalker captures the conductor forest: every conductor profile
// with its daily trips, flat subcollections and remittance records.
type ConductorTreeWalker struct {
	store       repository.DocumentStore
	log         logger.Logger
	concurrency int
}

// NewConductorTreeWalker creates a walker that visits up to concurrency conductors in parallel.
func NewConductorTreeWalker(store repository.DocumentStore, concurrency int, log logger.Logger) *ConductorTreeWalker {
	if concurrency <= 0 {
		concurrency = DefaultConductorConcurrency
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ConductorTreeWalker{store: store, log: log.WithComponent("conductor_walker"), concurrency: concurrency}
}

// Collect walks every conductor under path.
func (w *ConductorTreeWalker) Collect(ctx context.Context, path string) (*model.CollectionSnapshot, error) {
	profiles, err := listOrEmpty(ctx, w.store, path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	var mu sync.Mutex
	conductors := make(map[string]*model.ConductorSnapshot, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, profile := range profiles {
		profile := profile
		g.Go(func() error {
			snap, err := w.collectConductor(gctx, docpath.Join(path, profile.ID), profile.Data)
			if err != nil {
				return fmt.Errorf("conductor %s: %w", profile.ID, err)
			}
			mu.Lock()
			conductors[profile.ID] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	forest := model.NewForestSnapshot(model.ConductorForestPath, conductors)
	w.log.WithContext(ctx).Infof("Collected %d conductors (%d documents)", len(conductors), forest.DocumentCount())
	return forest, nil
}

func (w *ConductorTreeWalker) collectConductor(ctx context.Context, base string, profile model.DocumentData) (*model.ConductorSnapshot, error) {
	snap := model.NewConductorSnapshot(model.EncodeDocument(profile))
	sub := &snap.Subcollections

	flat := []struct {
		name   string
		target *model.DocumentSet
	}{
		{model.SubcollectionPreTickets, &sub.PreTickets},
		{model.SubcollectionPreBookings, &sub.PreBookings},
		{model.SubcollectionScannedQRCodes, &sub.ScannedQRCodes},
	}
	for _, f := range flat {
		set, err := collectSet(ctx, w.store, docpath.Join(base, f.name))
		if err != nil {
			return nil, err
		}
		*f.target = set
	}

	days, err := listOrEmpty(ctx, w.store, docpath.Join(base, model.SubcollectionDailyTrips))
	if err != nil {
		return nil, fmt.Errorf("list daily trips: %w", err)
	}
	for _, day := range days {
		trips, err := w.collectTrips(ctx, docpath.Join(base, model.SubcollectionDailyTrips, day.ID), day.Data)
		if err != nil {
			return nil, err
		}
		sub.DailyTrips[day.ID] = &model.DailyTripSnapshot{Data: model.EncodeDocument(day.Data), Trips: trips}
	}

	remits, err := listOrEmpty(ctx, w.store, docpath.Join(base, model.SubcollectionRemittance))
	if err != nil {
		return nil, fmt.Errorf("list remittance: %w", err)
	}
	for _, remit := range remits {
		tickets, err := collectSet(ctx, w.store, docpath.Join(base, model.SubcollectionRemittance, remit.ID, model.RemittanceTickets))
		if err != nil {
			return nil, err
		}
		sub.Remittance[remit.ID] = &model.RemittanceSnapshot{Data: model.EncodeDocument(remit.Data), Tickets: tickets}
	}
	return snap, nil
}

// collectTrips reads the three kinds of every trip discovered on a date
// document. Trips with no documents of any kind are left out.
func (w *ConductorTreeWalker) collectTrips(ctx context.Context, datePath string, dateData model.DocumentData) (map[string]*model.TripSnapshot, error) {
	trips := make(map[string]*model.TripSnapshot)
	for _, name := range model.DiscoverTripNames(dateData) {
		trip, err := w.collectTrip(ctx, docpath.Join(datePath, name))
		if err != nil {
			return nil, err
		}
		if !trip.IsEmpty() {
			trips[name] = trip
		}
	}
	return trips, nil
}

func (w *ConductorTreeWalker) collectTrip(ctx context.Context, tripPath string) (*model.TripSnapshot, error) {
	sets := make([]model.DocumentSet, len(model.TripKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range model.TripKinds {
		i, kind := i, kind
		g.Go(func() error {
			set, err := collectSet(gctx, w.store, docpath.Join(tripPath, kind, kind))
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	trip := &model.TripSnapshot{}
	for i, kind := range model.TripKinds {
		trip.SetKind(kind, sets[i])
	}
	return trip, nil
}
