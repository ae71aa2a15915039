package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestChunkRange(t *testing.T) {
	type span struct{ Start, End int }

	tests := []struct {
		name      string
		total     int
		chunkSize int
		want      []span
	}{
		{name: "empty", total: 0, chunkSize: 10, want: nil},
		{name: "single partial chunk", total: 3, chunkSize: 10, want: []span{{0, 3}}},
		{name: "exact multiple", total: 6, chunkSize: 3, want: []span{{0, 3}, {3, 6}}},
		{name: "trailing remainder", total: 7, chunkSize: 3, want: []span{{0, 3}, {3, 6}, {6, 7}}},
		{name: "zero chunk size falls back to one chunk", total: 5, chunkSize: 0, want: []span{{0, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []span
			err := ChunkRange(tt.total, tt.chunkSize, func(start, end int) error {
				got = append(got, span{start, end})
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected chunks %v, got %v", tt.want, got)
			}
		})
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := ChunkRange(10, 3, func(start, end int) error {
		calls++
		if start >= 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls before abort, got %d", calls)
	}
}
