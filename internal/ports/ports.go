package ports

import (
	"context"
	"regexp"
	"time"
)

type BrowserManager interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	IsReady() bool
}

// Page is the single live browser page the engine drives. Implementations
// are not safe for concurrent use; callers serialize access.
type Page interface {
	// Goto navigates and waits for network quiescence, bounded by timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	URL() string
	// Content returns the serialized DOM of the current document.
	Content(ctx context.Context) (string, error)
	// Query returns every element matching a structural, attribute or
	// text-equality selector, in document order.
	Query(ctx context.Context, selector string) ([]Element, error)
	// QueryMatching returns elements matching selector whose full text
	// content matches pattern.
	QueryMatching(ctx context.Context, selector string, pattern *regexp.Regexp) ([]Element, error)
	// QueryByRole returns elements with the given accessible role and name.
	QueryByRole(ctx context.Context, role, name string, exact bool) ([]Element, error)
	// Evaluate runs script as a function inside the page with arg as its
	// single argument and returns the JSON-like result.
	Evaluate(ctx context.Context, script string, arg any) (any, error)
	Press(ctx context.Context, key string) error
}

type Element interface {
	Query(ctx context.Context, selector string) ([]Element, error)
	Click(ctx context.Context, clickCount int) error
	Fill(ctx context.Context, value string) error
	Type(ctx context.Context, text string, delay time.Duration) error
}

// Clock abstracts settle delays and poll loops.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}
