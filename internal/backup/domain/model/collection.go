package model

import (
	"fmt"

	"transit-console/internal/shared/errors"
)

// CollectionKind selects the walker used to capture a logical collection.
type CollectionKind string

const (
	CollectionKindFlat            CollectionKind = "flat"
	CollectionKindConductorForest CollectionKind = "conductorForest"
)

// LogicalCollection is a named root in the document store that operators can back up.
type LogicalCollection struct {
	Key         string         `json:"key"`
	DisplayName string         `json:"displayName"`
	Path        string         `json:"path"`
	Description string         `json:"description"`
	Kind        CollectionKind `json:"kind"`
}

// CollectionRegistry is the static, ordered set of logical collections.
type CollectionRegistry struct {
	ordered []LogicalCollection
	byKey   map[string]LogicalCollection
}

// NewCollectionRegistry builds a registry; later duplicates of a key are ignored.
func NewCollectionRegistry(collections ...LogicalCollection) *CollectionRegistry {
	r := &CollectionRegistry{byKey: make(map[string]LogicalCollection, len(collections))}
	for _, c := range collections {
		if _, dup := r.byKey[c.Key]; dup {
			continue
		}
		if c.Kind == "" {
			c.Kind = CollectionKindFlat
		}
		r.ordered = append(r.ordered, c)
		r.byKey[c.Key] = c
	}
	return r
}

// DefaultCollections returns the collections of the transit console.
func DefaultCollections() *CollectionRegistry {
	return NewCollectionRegistry(
		LogicalCollection{
			Key:         "conductors",
			DisplayName: "Conductor Records",
			Path:        "conductors",
			Description: "Conductor profiles with daily trips, tickets, pre-bookings, scanned QR codes and remittance",
			Kind:        CollectionKindConductorForest,
		},
		LogicalCollection{Key: "adminUsers", DisplayName: "Admin Users", Path: "admin_users", Description: "Console operator accounts and roles"},
		LogicalCollection{Key: "activityLogs", DisplayName: "Audit Logs", Path: "activity_logs", Description: "Operator activity and system audit trail"},
		LogicalCollection{Key: "routes", DisplayName: "Routes", Path: "routes", Description: "Route definitions and stop sequences"},
		LogicalCollection{Key: "fareMatrix", DisplayName: "Fare Matrix", Path: "fare_matrix", Description: "Fare tables per route and passenger type"},
		LogicalCollection{Key: "busCompanies", DisplayName: "Bus Companies", Path: "bus_companies", Description: "Operating companies and their fleets"},
		LogicalCollection{Key: "devices", DisplayName: "Devices", Path: "devices", Description: "Registered ticketing handsets"},
	)
}

// Lookup returns the collection registered under key.
func (r *CollectionRegistry) Lookup(key string) (LogicalCollection, bool) {
	c, ok := r.byKey[key]
	return c, ok
}

// All returns the registered collections in registration order.
func (r *CollectionRegistry) All() []LogicalCollection {
	return append([]LogicalCollection(nil), r.ordered...)
}

// Keys returns every registered key in registration order.
func (r *CollectionRegistry) Keys() []string {
	keys := make([]string, len(r.ordered))
	for i, c := range r.ordered {
		keys[i] = c.Key
	}
	return keys
}

// Resolve maps caller-selected keys to collections, keeping the caller's order
// and dropping repeated keys.
func (r *CollectionRegistry) Resolve(keys []string) ([]LogicalCollection, error) {
	if len(keys) == 0 {
		return nil, errors.ErrNoCollectionsChosen
	}
	seen := make(map[string]bool, len(keys))
	out := make([]LogicalCollection, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		c, ok := r.byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errors.ErrUnknownCollection, key)
		}
		seen[key] = true
		out = append(out, c)
	}
	return out, nil
}
