// Package loader builds a dictionary archive from every page of a
// WaniKani collection.
package loader

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/wanikani-dict/pkg/archive"
	"github.com/Sternrassler/wanikani-dict/pkg/client"
	"github.com/Sternrassler/wanikani-dict/pkg/dictionary"
	"github.com/Sternrassler/wanikani-dict/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for dictionary builds.
var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wanikani_loader_pages_total",
		Help: "Total pages processed by the dictionary loader",
	})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanikani_loader_rows_total",
		Help: "Total dictionary rows written by bank",
	}, []string{"bank"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanikani_loader_runs_total",
		Help: "Total dictionary builds by result",
	}, []string{"result"})
)

// DefaultResource is the collection a dictionary is built from.
const DefaultResource = "subjects"

// Progress is reported once per fetched page, in page order.
type Progress struct {
	// Records are the raw subjects of this page.
	Records []client.Subject

	// Page is the 1-based page index.
	Page int

	// Cursor is the running sum of pages.per_page.
	Cursor int

	// Received is the running number of records actually received.
	Received int

	// Total is the collection size reported by the API. It is informational
	// and is not used to validate the build.
	Total int
}

// ProgressFunc observes a build. It must not retain Records.
type ProgressFunc func(Progress)

// Options configures a Loader.
type Options struct {
	// Resource is the collection to walk.
	Resource string

	// Kinds are the banks to produce, in entry order.
	Kinds []dictionary.Kind

	// Manifest is written as index.json.
	Manifest archive.Manifest

	// Pagination bounds the page walk. It is used as given: the zero
	// value walks until next_url is absent, DefaultOptions caps the walk
	// at pagination.DefaultConfig().MaxPages.
	Pagination pagination.Config

	// OnProgress is called after each page (optional).
	OnProgress ProgressFunc
}

// DefaultOptions returns the options of a standard WaniKani build.
func DefaultOptions() Options {
	return Options{
		Resource:   DefaultResource,
		Kinds:      dictionary.DefaultKinds(),
		Manifest:   archive.DefaultManifest,
		Pagination: pagination.DefaultConfig(),
	}
}

// Result is a finished build.
type Result struct {
	// Data is the serialized archive.
	Data []byte

	// Entries lists the archive entry names, manifest first.
	Entries []string

	// Pages is the number of pages fetched.
	Pages int

	// Received is the number of records received over all pages.
	Received int

	// Total is the collection size the API reported on the last page.
	Total int
}

// Loader walks a collection and assembles the archive. The walk ends when
// a page has no next_url; Options.Pagination.MaxPages only guards against
// a cursor that never ends.
type Loader struct {
	fetcher pagination.PageFetcher
	opts    Options
	logger  zerolog.Logger
}

// New creates a loader. An empty Resource, Kinds or Manifest falls back to
// DefaultOptions; Pagination is never defaulted, so start from
// DefaultOptions to keep the page limit.
func New(fetcher pagination.PageFetcher, opts Options) (*Loader, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}

	defaults := DefaultOptions()
	if opts.Resource == "" {
		opts.Resource = defaults.Resource
	}
	if len(opts.Kinds) == 0 {
		opts.Kinds = defaults.Kinds
	}
	if opts.Manifest == (archive.Manifest{}) {
		opts.Manifest = defaults.Manifest
	}

	banks := make(map[string]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		if k.Bank == "" || k.Object == "" {
			return nil, fmt.Errorf("kind must name both bank and object (got %+v)", k)
		}
		if banks[k.Bank] {
			return nil, fmt.Errorf("duplicate bank %q", k.Bank)
		}
		banks[k.Bank] = true
	}

	return &Loader{
		fetcher: fetcher,
		opts:    opts,
		logger:  log.With().Str("component", "wanikani-loader").Logger(),
	}, nil
}

// Load fetches every page and returns the finished archive. Any fetch
// error is returned as is and no archive is produced.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	start := time.Now()

	builder := archive.NewBuilder(l.opts.Manifest)
	walker := pagination.NewWalker(l.fetcher, l.opts.Resource, l.params(), l.opts.Pagination)

	res := &Result{}
	for page, err := range walker.Pages(ctx) {
		if err != nil {
			runsTotal.WithLabelValues("failed").Inc()
			l.logger.Error().
				Err(err).
				Str("kind", string(client.KindOf(err))).
				Int("pages", res.Pages).
				Msg("Dictionary build failed")
			return nil, err
		}

		if err := l.addPage(builder, page); err != nil {
			runsTotal.WithLabelValues("failed").Inc()
			return nil, err
		}

		records := page.Result.Data
		res.Pages = page.Index
		res.Received += len(records)
		res.Total = page.Result.TotalCount

		if l.opts.OnProgress != nil {
			l.opts.OnProgress(Progress{
				Records:  records,
				Page:     page.Index,
				Cursor:   page.Cursor,
				Received: res.Received,
				Total:    page.Result.TotalCount,
			})
		}
	}

	res.Entries = builder.Names()

	data, err := builder.Finalize()
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	res.Data = data

	runsTotal.WithLabelValues("success").Inc()
	l.logger.Info().
		Int("pages", res.Pages).
		Int("entries", len(res.Entries)).
		Int("records", res.Received).
		Int("total_count", res.Total).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Dictionary build complete")

	return res, nil
}

// addPage writes one bank entry per kind that matched on this page.
func (l *Loader) addPage(builder *archive.Builder, page *pagination.Page) error {
	pagesTotal.Inc()

	for _, bank := range dictionary.Partition(page.Result.Data, l.opts.Kinds) {
		name := archive.BankName(bank.Kind.Bank, page.Index)
		if err := builder.AddJSON(name, bank.Rows); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		rowsTotal.WithLabelValues(bank.Kind.Bank).Add(float64(len(bank.Rows)))

		l.logger.Debug().
			Str("entry", name).
			Int("rows", len(bank.Rows)).
			Msg("Bank entry added")
	}
	return nil
}

func (l *Loader) params() url.Values {
	params := url.Values{}
	if objects := dictionary.Objects(l.opts.Kinds); len(objects) > 0 {
		params.Set("types", strings.Join(objects, ","))
	}
	return params
}

// LoadDictionary builds the standard WaniKani dictionary with a fresh,
// enabled client for cfg.Token.
func LoadDictionary(ctx context.Context, cfg client.Config, onProgress ProgressFunc) ([]byte, error) {
	cfg.Enabled = true

	wk, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	opts := DefaultOptions()
	opts.OnProgress = onProgress

	l, err := New(wk, opts)
	if err != nil {
		return nil, err
	}

	res, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}
