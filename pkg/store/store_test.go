package store

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestChunkRange(t *testing.T) {
	var windows [][2]int
	err := ChunkRange(10, 4, func(start, end int) error {
		windows = append(windows, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][2]int{{0, 4}, {4, 8}, {8, 10}}
	if !reflect.DeepEqual(windows, want) {
		t.Fatalf("windows %v, want %v", windows, want)
	}
}

func TestChunkRangeEmpty(t *testing.T) {
	err := ChunkRange(0, 4, func(start, end int) error {
		t.Fatalf("fn must not run for empty range")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	calls := 0
	wantErr := fmt.Errorf("boom")
	err := ChunkRange(10, 2, func(start, end int) error {
		calls++
		if calls == 2 {
			return wantErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"a", "", "b", "a", "c", "b"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestDedupeInt64s(t *testing.T) {
	got := DedupeInt64s([]int64{3, 1, 3, 2, 1})
	if !reflect.DeepEqual(got, []int64{3, 1, 2}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", unique)) {
		t.Fatalf("wrapped 23505 must be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"net timeout", &net.DNSError{IsTimeout: true}, true},
		{"plain", errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s: IsTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}
