package fixturepool

import "context"

// Store is the boundary between the pooling engine and the backing store.
// The default fixture factories create rows through it at population time
// and the cleanup functions reset row state through it at release time.
//
// Create methods must tolerate being called once per fixture at start-up;
// Reset methods must be idempotent.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	CreateCourse(ctx context.Context, c *Course) error
	CreateArticle(ctx context.Context, a *Article) error
	CreateEvent(ctx context.Context, e *Event) error

	// ResetAccount clears any session or scenario state attached to the
	// account (the account row itself is immutable pool property).
	ResetAccount(ctx context.Context, a *Account) error

	// ResetCourse removes all enrollments and re-publishes the course.
	ResetCourse(ctx context.Context, c *Course) error

	// ResetArticle re-publishes the article with its original content.
	ResetArticle(ctx context.Context, a *Article) error

	// ResetEvent empties the event's attendee list.
	ResetEvent(ctx context.Context, e *Event) error
}
