package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"time"

	"github.com/Sternrassler/wanikani-dict/pkg/client"
	"github.com/rs/zerolog/log"
)

// ErrTooManyPages is returned when a walk exceeds Config.MaxPages.
var ErrTooManyPages = errors.New("page limit exceeded")

// Config holds walker configuration.
type Config struct {
	// MaxPages stops a walk that keeps receiving next_url links
	// (0 means no limit).
	MaxPages int
}

// DefaultConfig returns the default walker configuration. The subjects
// collection is ~9000 records at 1000 per page; 500 pages leaves a wide
// margin while still ending a runaway cursor.
func DefaultConfig() Config {
	return Config{
		MaxPages: 500,
	}
}

// PageFetcher is implemented by *client.Client.
type PageFetcher interface {
	// FetchResource fetches the first page of a named resource.
	FetchResource(ctx context.Context, resource string, params url.Values) (*client.PageResult, error)

	// FetchByURL fetches a follow-up page by absolute URL.
	FetchByURL(ctx context.Context, rawURL string) (*client.PageResult, error)
}

// State is the position of a walk.
type State int

const (
	// StateIdle means no page has been requested yet.
	StateIdle State = iota

	// StateFetching means at least one page arrived and a next_url is pending.
	StateFetching

	// StateDone means the collection is exhausted.
	StateDone

	// StateFailed means a fetch returned an error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Page is one fetched page together with its position in the walk.
type Page struct {
	// Index is the 1-based page number.
	Index int

	// Cursor is the running sum of pages.per_page up to and including this page.
	Cursor int

	// Result is the decoded page.
	Result *client.PageResult
}

// Walker iterates over the pages of one resource. It is not safe for
// concurrent use.
type Walker struct {
	fetcher  PageFetcher
	resource string
	params   url.Values
	config   Config

	state  State
	next   string
	index  int
	cursor int
	err    error
	start  time.Time
}

// NewWalker creates a walker over resource filtered by params.
func NewWalker(fetcher PageFetcher, resource string, params url.Values, config Config) *Walker {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Walker{
		fetcher:  fetcher,
		resource: resource,
		params:   params,
		config:   config,
	}
}

// State returns the current walk state.
func (w *Walker) State() State {
	return w.state
}

// Err returns the error that failed the walk, if any.
func (w *Walker) Err() error {
	return w.err
}

// Next fetches the next page. It returns (nil, nil) once the collection is
// exhausted and the latched error after a failure.
func (w *Walker) Next(ctx context.Context) (*Page, error) {
	switch w.state {
	case StateDone:
		return nil, nil
	case StateFailed:
		return nil, w.err
	}

	if w.config.MaxPages > 0 && w.index >= w.config.MaxPages {
		return nil, w.failWith(fmt.Errorf("%w: %d pages of %s", ErrTooManyPages, w.config.MaxPages, w.resource))
	}

	var (
		result *client.PageResult
		err    error
	)
	if w.state == StateIdle {
		w.start = time.Now()
		result, err = w.fetcher.FetchResource(ctx, w.resource, w.params)
	} else {
		result, err = w.fetcher.FetchByURL(ctx, w.next)
	}
	if err != nil {
		return nil, w.failWith(err)
	}

	if result == nil {
		w.finish()
		return nil, nil
	}

	w.index++
	w.cursor += result.Pages.PerPage
	page := &Page{Index: w.index, Cursor: w.cursor, Result: result}

	if next, ok := result.Pages.Next(); ok {
		w.next = next
		w.state = StateFetching
	} else {
		w.next = ""
		w.finish()
	}

	log.Debug().
		Str("resource", w.resource).
		Int("page", page.Index).
		Int("records", len(result.Data)).
		Int("total_count", result.TotalCount).
		Msg("Page fetched")

	return page, nil
}

// Pages returns the remaining pages as a sequence. The walk stops at the
// first error, which is yielded with a nil page. Iterating a second time
// continues from where the first iteration stopped.
func (w *Walker) Pages(ctx context.Context) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		for {
			page, err := w.Next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if page == nil {
				return
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}

func (w *Walker) failWith(err error) error {
	w.state = StateFailed
	w.err = err

	log.Warn().
		Err(err).
		Str("resource", w.resource).
		Int("fetched_pages", w.index).
		Msg("Page walk failed")

	return err
}

func (w *Walker) finish() {
	w.state = StateDone

	log.Info().
		Str("resource", w.resource).
		Int("pages", w.index).
		Int("cursor", w.cursor).
		Dur("duration", time.Since(w.start)).
		Msg("Page walk complete")
}
