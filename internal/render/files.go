package render

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/annodiff/internal/report"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileName derives a file name (without extension) from an item id.
// Characters outside [A-Za-z0-9._-] become underscores; if that changed the
// id, a short suffix derived from the original id keeps distinct ids apart.
// The result depends only on the id.
func FileName(id string) string {
	clean := unsafeFileChars.ReplaceAllString(id, "_")
	if clean == id && id != "" && id != "." && id != ".." {
		return id
	}
	if clean == "" {
		clean = "item"
	}
	suffix := uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()[:8]
	return clean + "-" + suffix
}

// forEachItem calls fn for every item of rep, at most workers at a time. It
// attempts every item even when some fail and returns the failures joined,
// ordered by item id.
func forEachItem(ctx context.Context, rep *report.DiffReport, workers int, fn func(it *report.ItemResult) error) error {
	ids := rep.ItemIDs()
	errs := make([]error, len(ids))
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for i, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		go func(i int, it *report.ItemResult) {
			defer wg.Done()
			defer sem.Release(1)
			if err := fn(it); err != nil {
				errs[i] = fmt.Errorf("item %q: %w", it.ID, err)
			}
		}(i, rep.Items[id])
	}
	wg.Wait()

	return errors.Join(errs...)
}
