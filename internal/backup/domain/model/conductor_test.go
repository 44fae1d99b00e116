package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoverTripNames(t *testing.T) {
	tests := []struct {
		name string
		data DocumentData
		want []string
	}{
		{
			name: "string fields with trip prefix are excluded",
			data: DocumentData{
				"trip1":     map[string]interface{}{"route": "A"},
				"tripNotes": "hello",
				"trip2":     map[string]interface{}{"route": "B"},
			},
			want: []string{"trip1", "trip2"},
		},
		{
			name: "sorted regardless of insertion",
			data: DocumentData{
				"trip10": map[string]interface{}{},
				"trip2":  map[string]interface{}{},
				"date":   "2024-01-01",
			},
			want: []string{"trip10", "trip2"},
		},
		{
			name: "no trips",
			data: DocumentData{"total": 12.5, "trips": []interface{}{"x"}},
			want: nil,
		},
		{
			name: "nil document",
			data: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscoverTripNames(tt.data))
		})
	}
}

func TestConductorSnapshot_DocumentCount(t *testing.T) {
	c := NewConductorSnapshot(DocumentData{"name": "Juan"})
	c.Subcollections.DailyTrips["2024-03-01"] = &DailyTripSnapshot{
		Data: DocumentData{"trip1": map[string]interface{}{}},
		Trips: map[string]*TripSnapshot{
			"trip1": {Tickets: DocumentSet{"t1": {}, "t2": {}}, PreTickets: DocumentSet{"p1": {}}},
		},
	}
	c.Subcollections.PreBookings["b1"] = DocumentData{}
	c.Subcollections.ScannedQRCodes["q1"] = DocumentData{}
	c.Subcollections.Remittance["2024-03-01"] = &RemittanceSnapshot{
		Data:    DocumentData{"total": 100},
		Tickets: DocumentSet{"r1": {}},
	}

	// profile + date + 3 trip docs + 2 flat + remittance date + 1 remittance ticket
	assert.Equal(t, 9, c.DocumentCount())

	var nilConductor *ConductorSnapshot
	assert.Equal(t, 0, nilConductor.DocumentCount())
}

func TestTripSnapshot_Kinds(t *testing.T) {
	trip := &TripSnapshot{}
	assert.True(t, trip.IsEmpty())

	trip.SetKind(TripKindPreBookings, DocumentSet{"b": {}})
	trip.SetKind(TripKindTickets, DocumentSet{})
	assert.False(t, trip.IsEmpty())
	assert.Nil(t, trip.Tickets)
	assert.Len(t, trip.Kind(TripKindPreBookings), 1)
	assert.Nil(t, trip.Kind("unknown"))
}
