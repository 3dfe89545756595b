package fetcher

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group collapses concurrent fetches of the same page URL into one request.
type Group struct {
	g singleflight.Group
}

// Do runs fn once per in-flight key. fn must not depend on any single
// caller's cancellation: each caller stops waiting when its own ctx is done,
// while the shared call keeps running for the others. shared reports whether
// the body was handed to more than one caller; callers must treat it as
// read-only.
func (g *Group) Do(ctx context.Context, key string, fn func() ([]byte, error)) (body []byte, shared bool, err error) {
	ch := g.g.DoChan(key, func() (interface{}, error) {
		return fn()
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		body, _ = res.Val.([]byte)
		return body, res.Shared, nil
	}
}
