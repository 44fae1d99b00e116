package model

import (
	"sort"
	"strings"
)

// Subcollection names under conductors/{cid}.
const (
	SubcollectionDailyTrips     = "dailyTrips"
	SubcollectionPreTickets     = "preTickets"
	SubcollectionPreBookings    = "preBookings"
	SubcollectionScannedQRCodes = "scannedQRCodes"
	SubcollectionRemittance     = "remittance"
	RemittanceTickets           = "tickets"
)

// Trip document kinds. Each lives at {date}/{trip}/{kind}/{kind}/{docId}.
const (
	TripKindTickets     = "tickets"
	TripKindPreBookings = "preBookings"
	TripKindPreTickets  = "preTickets"
)

// TripKinds lists the trip kinds in capture order.
var TripKinds = []string{TripKindTickets, TripKindPreBookings, TripKindPreTickets}

// TripFieldPrefix marks daily-trip fields that name a trip.
const TripFieldPrefix = "trip"

// ConductorForestPath is the collectionPath written for the conductor forest.
const ConductorForestPath = "conductors_complete"

// ConductorSnapshot is a conductor profile and every nested record under it.
type ConductorSnapshot struct {
	Profile        DocumentData            `json:"profile"`
	Subcollections ConductorSubcollections `json:"subcollections"`
}

// ConductorSubcollections are the five sibling sub-trees of a conductor.
type ConductorSubcollections struct {
	DailyTrips     map[string]*DailyTripSnapshot  `json:"dailyTrips"`
	PreTickets     DocumentSet                    `json:"preTickets"`
	PreBookings    DocumentSet                    `json:"preBookings"`
	ScannedQRCodes DocumentSet                    `json:"scannedQRCodes"`
	Remittance     map[string]*RemittanceSnapshot `json:"remittance"`
}

// NewConductorSnapshot returns a snapshot with every map allocated.
func NewConductorSnapshot(profile DocumentData) *ConductorSnapshot {
	if profile == nil {
		profile = DocumentData{}
	}
	return &ConductorSnapshot{
		Profile: profile,
		Subcollections: ConductorSubcollections{
			DailyTrips:     map[string]*DailyTripSnapshot{},
			PreTickets:     DocumentSet{},
			PreBookings:    DocumentSet{},
			ScannedQRCodes: DocumentSet{},
			Remittance:     map[string]*RemittanceSnapshot{},
		},
	}
}

// FlatSubcollections returns the three id->data subcollections keyed by name.
func (c *ConductorSnapshot) FlatSubcollections() map[string]DocumentSet {
	return map[string]DocumentSet{
		SubcollectionPreTickets:     c.Subcollections.PreTickets,
		SubcollectionPreBookings:    c.Subcollections.PreBookings,
		SubcollectionScannedQRCodes: c.Subcollections.ScannedQRCodes,
	}
}

// DocumentCount counts the profile and every nested document.
func (c *ConductorSnapshot) DocumentCount() int {
	if c == nil {
		return 0
	}
	sub := c.Subcollections
	total := 1
	for _, day := range sub.DailyTrips {
		total += day.DocumentCount()
	}
	total += len(sub.PreTickets) + len(sub.PreBookings) + len(sub.ScannedQRCodes)
	for _, r := range sub.Remittance {
		total += r.DocumentCount()
	}
	return total
}

// DailyTripSnapshot is a dailyTrips/{date} document and its trips.
type DailyTripSnapshot struct {
	Data  DocumentData             `json:"data"`
	Trips map[string]*TripSnapshot `json:"trips"`
}

// DocumentCount counts the date document and its trip documents.
func (d *DailyTripSnapshot) DocumentCount() int {
	if d == nil {
		return 0
	}
	total := 1
	for _, trip := range d.Trips {
		total += trip.DocumentCount()
	}
	return total
}

// TripSnapshot holds the documents of one trip, grouped by kind.
type TripSnapshot struct {
	Tickets     DocumentSet `json:"tickets,omitempty"`
	PreBookings DocumentSet `json:"preBookings,omitempty"`
	PreTickets  DocumentSet `json:"preTickets,omitempty"`
}

// Kind returns the document set for kind.
func (t *TripSnapshot) Kind(kind string) DocumentSet {
	switch kind {
	case TripKindTickets:
		return t.Tickets
	case TripKindPreBookings:
		return t.PreBookings
	case TripKindPreTickets:
		return t.PreTickets
	}
	return nil
}

// SetKind stores docs under kind. Empty sets are dropped.
func (t *TripSnapshot) SetKind(kind string, docs DocumentSet) {
	if len(docs) == 0 {
		docs = nil
	}
	switch kind {
	case TripKindTickets:
		t.Tickets = docs
	case TripKindPreBookings:
		t.PreBookings = docs
	case TripKindPreTickets:
		t.PreTickets = docs
	}
}

// IsEmpty reports whether no kind has documents.
func (t *TripSnapshot) IsEmpty() bool {
	return len(t.Tickets) == 0 && len(t.PreBookings) == 0 && len(t.PreTickets) == 0
}

func (t *TripSnapshot) DocumentCount() int {
	if t == nil {
		return 0
	}
	return len(t.Tickets) + len(t.PreBookings) + len(t.PreTickets)
}

// RemittanceSnapshot is a remittance/{date} document and its tickets.
type RemittanceSnapshot struct {
	Data    DocumentData `json:"data"`
	Tickets DocumentSet  `json:"tickets"`
}

func (r *RemittanceSnapshot) DocumentCount() int {
	if r == nil {
		return 0
	}
	return 1 + len(r.Tickets)
}

// DiscoverTripNames returns the sorted field names of data that start with
// "trip" and hold a nested map. Trips are not listed anywhere else.
func DiscoverTripNames(data DocumentData) []string {
	var names []string
	for key, value := range data {
		if !strings.HasPrefix(key, TripFieldPrefix) {
			continue
		}
		if _, ok := value.(map[string]interface{}); ok {
			names = append(names, key)
		}
	}
	sort.Strings(names)
	return names
}
