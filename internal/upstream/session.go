package upstream

import (
	"context"
	"errors"
)

// SIDHolder remembers the backend session id between requests.
type SIDHolder interface {
	UpstreamSID() string
	SetUpstreamSID(sid string)
}

// WithSession runs fn with a valid backend session id, opening one when the
// holder has none and reopening it once if the backend reports it expired.
func (c *Client) WithSession(ctx context.Context, holder SIDHolder, fn func(ctx context.Context, sid string) error) error {
	sid := holder.UpstreamSID()
	if sid == "" {
		fresh, err := c.Authenticate(ctx)
		if err != nil {
			return err
		}
		holder.SetUpstreamSID(fresh)
		sid = fresh
	}
	err := fn(ctx, sid)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}
	fresh, authErr := c.Authenticate(ctx)
	if authErr != nil {
		return authErr
	}
	holder.SetUpstreamSID(fresh)
	return fn(ctx, fresh)
}
