package invoices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Allocator hands out candidate invoice numbers in the PREFIX-YYYY-NNN
// series. It holds no lock; the unique constraint on invoices.number is the
// arbiter, and the issuer retries with the next candidate on a collision.
type Allocator struct {
	repo   Repository
	prefix string
}

// NewAllocator builds an allocator for the given number prefix.
func NewAllocator(repo Repository, prefix string) (*Allocator, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repo required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("number prefix required")
	}
	return &Allocator{repo: repo, prefix: prefix}, nil
}

// Next returns the next candidate number for the year. The sequence restarts
// at 001 every year.
func (a *Allocator) Next(ctx context.Context, year int) (string, error) {
	last, err := a.repo.MaxNumberForYear(ctx, a.prefix, year)
	if err != nil {
		return "", fmt.Errorf("reading number series: %w", err)
	}

	seq := 1
	if last != "" {
		parsed, err := sequenceOf(last)
		if err != nil {
			return "", err
		}
		seq = parsed + 1
	}

	return fmt.Sprintf("%s-%d-%03d", a.prefix, year, seq), nil
}

func sequenceOf(number string) (int, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("malformed invoice number %q", number)
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed invoice number %q: %w", number, err)
	}
	return seq, nil
}
