package store

import (
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by single-record lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// IsUniqueViolation reports whether err is a unique-constraint violation.
// Get-or-create callers treat this as "someone else created it concurrently"
// and re-fetch instead of retrying the insert.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// IsTransient reports whether err is a connection-class failure worth
// retrying after a rollback. Constraint and validation errors are never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions. Class 57: operator intervention
		// (admin shutdown, crash shutdown).
		return len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ChunkRange calls fn over [start, end) windows of at most chunkSize until
// total is covered or fn fails.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings returns in without empty values or duplicates, preserving
// first-seen order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DedupeInt64s returns in without duplicates, preserving first-seen order.
func DedupeInt64s(in []int64) []int64 {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
