// Package presence answers "is this user online, and when were they last seen".
package presence

import (
	"context"
	"errors"
	"time"
)

// Status is a point-in-time liveness reading. LastSeen is zero when unknown.
type Status struct {
	Online   bool
	LastSeen time.Time
}

type Source interface {
	Status(ctx context.Context, userID int64) (Status, error)
}

// LocalIndex is the part of the connection registry presence reads.
type LocalIndex interface {
	UserOnline(userID int64) bool
	LastSeen(userID int64) (time.Time, bool)
}

// Local derives presence from sockets held by this process.
type Local struct {
	index LocalIndex
	now   func() time.Time
}

func NewLocal(index LocalIndex) *Local {
	return &Local{index: index, now: time.Now}
}

func (l *Local) Status(_ context.Context, userID int64) (Status, error) {
	if l.index.UserOnline(userID) {
		return Status{Online: true, LastSeen: l.now()}, nil
	}
	seen, _ := l.index.LastSeen(userID)
	return Status{LastSeen: seen}, nil
}

type combined []Source

// Combine reports a user online if any source does, with the latest last-seen
// time. Failing sources are skipped unless all of them fail.
func Combine(sources ...Source) Source {
	return combined(sources)
}

func (c combined) Status(ctx context.Context, userID int64) (Status, error) {
	var (
		out  Status
		errs []error
		ok   bool
	)
	for _, src := range c {
		st, err := src.Status(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ok = true
		out.Online = out.Online || st.Online
		if st.LastSeen.After(out.LastSeen) {
			out.LastSeen = st.LastSeen
		}
	}
	if !ok && len(errs) > 0 {
		return Status{}, errors.Join(errs...)
	}
	return out, nil
}
