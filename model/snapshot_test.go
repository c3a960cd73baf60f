package model

import (
	"testing"
	"time"
)

func TestAverage(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	at := func(i int) time.Time { return t0.Add(time.Duration(i) * time.Second) }
	samples := []MetricSample{
		{Instance: TotalInstance, Value: 1500, Timestamp: at(0)},
		{Instance: "5432", Value: 1500, Timestamp: at(0)},
		{Instance: TotalInstance, Value: 0, Timestamp: at(1)},
		{Instance: TotalInstance, Value: 30, Timestamp: at(2)},
		{Instance: "3306", Value: 30, Timestamp: at(2)},
	}

	tests := []struct {
		name         string
		includeTotal bool
		want         map[string]float64
	}{
		{"with total", true, map[string]float64{TotalInstance: 510, "5432": 500, "3306": 10}},
		{"without total", false, map[string]float64{"5432": 500, "3306": 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Average(samples, tt.includeTotal)
			if len(got) != len(tt.want) {
				t.Fatalf("Average = %v, want %v", got, tt.want)
			}
			for inst, want := range tt.want {
				if got[inst] != want {
					t.Errorf("Average[%s] = %v, want %v", inst, got[inst], want)
				}
			}
		})
	}
}

func TestAverageEmpty(t *testing.T) {
	if got := Average(nil, true); len(got) != 0 {
		t.Errorf("Average(nil) = %v", got)
	}
}

func TestSnapshotClone(t *testing.T) {
	s := NewDomainSnapshot()
	s.Set("Pages/sec", TotalInstance, 4)
	c := s.Clone()
	c.Set("Pages/sec", TotalInstance, 40)
	c.Set("Threads", TotalInstance, 1)
	if v, _ := s.Get("Pages/sec", TotalInstance); v != 4 {
		t.Errorf("original changed to %v", v)
	}
	if s.Len() != 1 || c.Len() != 2 {
		t.Errorf("len original %d clone %d", s.Len(), c.Len())
	}
	var zero DomainSnapshot
	if zero.Clone().Len() != 0 {
		t.Error("clone of zero snapshot should be empty")
	}
}
