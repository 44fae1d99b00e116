package usecase

import (
	"context"
	"sort"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/docpath"

	"golang.org/x/sync/errgroup"
)

// restoreWalk carries the state of one restore pass over a snapshot.
type restoreWalk struct {
	engine  *RestoreEngine
	mode    model.RestoreMode
	tracker *progressTracker
}

// restoreDocument decodes and writes one document. Failures are recorded and
// never stop the walk; a cancelled context stops without recording.
func (w *restoreWalk) restoreDocument(ctx context.Context, path string, encoded model.DocumentData) {
	if ctx.Err() != nil {
		return
	}
	data := model.DecodeDocument(encoded)
	if data == nil {
		data = model.DocumentData{}
	}

	outcome, err := w.engine.apply(ctx, w.mode, path, data)
	switch {
	case err != nil && isCancellation(ctx, err):
		return
	case err != nil:
		w.engine.log.WithContext(ctx).WithError(err).Debugf("Document %s not restored", path)
		w.tracker.failed(path, err)
	case outcome == outcomeSkipped:
		w.tracker.skipped(path)
	default:
		w.tracker.restored(path)
	}
}

// restoreForest restores conductors in parallel. Each conductor's own
// documents are written in order: profile, daily trips, flat
// subcollections, remittance.
func (w *restoreWalk) restoreForest(ctx context.Context, root string, conductors map[string]*model.ConductorSnapshot) {
	var g errgroup.Group
	g.SetLimit(w.engine.cfg.ConductorConcurrency)
	for _, id := range sortedKeys(conductors) {
		id, conductor := id, conductors[id]
		if conductor == nil {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			w.restoreConductor(ctx, docpath.Join(root, id), conductor)
			if ctx.Err() == nil {
				w.tracker.conductorDone(id)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (w *restoreWalk) restoreConductor(ctx context.Context, base string, c *model.ConductorSnapshot) {
	w.restoreDocument(ctx, base, c.Profile)
	sub := c.Subcollections

	for _, date := range sortedKeys(sub.DailyTrips) {
		day := sub.DailyTrips[date]
		if day == nil {
			continue
		}
		datePath := docpath.Join(base, model.SubcollectionDailyTrips, date)
		w.restoreDocument(ctx, datePath, day.Data)

		for _, tripName := range sortedKeys(day.Trips) {
			trip := day.Trips[tripName]
			if trip == nil {
				continue
			}
			for _, kind := range model.TripKinds {
				w.restoreSet(ctx, docpath.Join(datePath, tripName, kind, kind), trip.Kind(kind))
			}
		}
	}

	w.restoreSet(ctx, docpath.Join(base, model.SubcollectionPreTickets), sub.PreTickets)
	w.restoreSet(ctx, docpath.Join(base, model.SubcollectionPreBookings), sub.PreBookings)
	w.restoreSet(ctx, docpath.Join(base, model.SubcollectionScannedQRCodes), sub.ScannedQRCodes)

	for _, date := range sortedKeys(sub.Remittance) {
		remit := sub.Remittance[date]
		if remit == nil {
			continue
		}
		datePath := docpath.Join(base, model.SubcollectionRemittance, date)
		w.restoreDocument(ctx, datePath, remit.Data)
		w.restoreSet(ctx, docpath.Join(datePath, model.RemittanceTickets), remit.Tickets)
	}
}

func (w *restoreWalk) restoreSet(ctx context.Context, collectionPath string, docs model.DocumentSet) {
	for _, id := range sortedKeys(docs) {
		w.restoreDocument(ctx, docpath.Join(collectionPath, id), docs[id])
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
