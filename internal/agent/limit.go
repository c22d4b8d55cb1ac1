package agent

import (
	"context"

	"golang.org/x/sync/semaphore"
)

type limited struct {
	next Provider
	sem  *semaphore.Weighted
}

// Limit caps the number of concurrent Generate calls on p. A caller that
// cannot get a slot before ctx is done gets ctx's error.
func Limit(p Provider, n int) Provider {
	if n < 1 {
		n = 1
	}
	return &limited{next: p, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.next.Generate(ctx, prompt)
}
