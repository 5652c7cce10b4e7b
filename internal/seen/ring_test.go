package seen

import "testing"

func TestRingDeduplicates(t *testing.T) {
	ring := NewRing(10)
	rec := Record{Score: 100, MapID: 1, UserID: 7}

	if ring.Contains(rec) {
		t.Fatal("empty ring reports record as seen")
	}
	ring.Add(rec)
	if !ring.Contains(rec) {
		t.Fatal("record not found after Add")
	}

	ring.Add(rec)
	if ring.Len() != 1 {
		t.Errorf("Len() = %d after duplicate Add, want 1", ring.Len())
	}
}

func TestRingDistinguishesFields(t *testing.T) {
	ring := NewRing(10)
	ring.Add(Record{Score: 100, MapID: 1, UserID: 7})

	others := []Record{
		{Score: 101, MapID: 1, UserID: 7},
		{Score: 100, MapID: 2, UserID: 7},
		{Score: 100, MapID: 1, UserID: 8},
	}
	for _, rec := range others {
		if ring.Contains(rec) {
			t.Errorf("Contains(%+v) = true, want false", rec)
		}
	}
}

func TestRingEvictsOldest(t *testing.T) {
	ring := NewRing(3)
	records := []Record{
		{Score: 1, MapID: 1, UserID: 1},
		{Score: 2, MapID: 2, UserID: 1},
		{Score: 3, MapID: 3, UserID: 1},
		{Score: 4, MapID: 4, UserID: 1},
	}
	for _, rec := range records {
		ring.Add(rec)
	}

	if ring.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ring.Len())
	}
	if ring.Contains(records[0]) {
		t.Error("oldest record survived eviction")
	}
	for _, rec := range records[1:] {
		if !ring.Contains(rec) {
			t.Errorf("record %+v evicted too early", rec)
		}
	}
}

func TestRingEvictionOrderIsFIFO(t *testing.T) {
	ring := NewRing(2)
	a := Record{Score: 1, MapID: 1, UserID: 1}
	b := Record{Score: 2, MapID: 2, UserID: 1}
	c := Record{Score: 3, MapID: 3, UserID: 1}
	d := Record{Score: 4, MapID: 4, UserID: 1}

	ring.Add(a)
	ring.Add(b)
	ring.Add(c) // evicts a
	ring.Add(d) // evicts b

	if ring.Contains(a) || ring.Contains(b) {
		t.Error("evicted records still present")
	}
	if !ring.Contains(c) || !ring.Contains(d) {
		t.Error("recent records missing")
	}
}
