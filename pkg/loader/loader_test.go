package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/Sternrassler/wanikani-dict/internal/testutil"
	"github.com/Sternrassler/wanikani-dict/pkg/archive"
	"github.com/Sternrassler/wanikani-dict/pkg/client"
	"github.com/Sternrassler/wanikani-dict/pkg/dictionary"
	"github.com/Sternrassler/wanikani-dict/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, mock *testutil.MockWaniKani) *client.Client {
	t.Helper()
	wk, err := client.New(client.Config{BaseURL: mock.BaseURL(), Token: "test-token", Enabled: true})
	require.NoError(t, err)
	return wk
}

func newLoader(t *testing.T, fetcher *client.Client, onProgress ProgressFunc) *Loader {
	t.Helper()
	opts := DefaultOptions()
	opts.OnProgress = onProgress
	l, err := New(fetcher, opts)
	require.NoError(t, err)
	return l
}

func bankNames(names []string) []string {
	var out []string
	for _, n := range names {
		if n != archive.ManifestName {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func TestLoad_RoundTrip(t *testing.T) {
	const n = 4

	mock := testutil.NewMockWaniKani()
	defer mock.Close()

	pages := make([][]client.Subject, n)
	for i := 1; i <= n; i++ {
		pages[i-1] = []client.Subject{testutil.NewSubject(i, "kanji", fmt.Sprintf("S%d", i), fmt.Sprintf("M%d", i))}
	}
	mock.SetSubjectPages(pages...)

	res, err := newLoader(t, newClient(t, mock), nil).Load(context.Background())
	require.NoError(t, err)

	a, err := archive.Open(res.Data)
	require.NoError(t, err)

	assert.Equal(t, archive.DefaultManifest, a.Manifest())
	assert.Len(t, a.Names(), n+1)

	for i := 1; i <= n; i++ {
		raw, ok := a.File(fmt.Sprintf("kanji_bank_%d.json", i))
		require.True(t, ok, "kanji_bank_%d.json missing", i)
		assert.JSONEq(t, fmt.Sprintf(`[["S%d","","","",["M%d"],{}]]`, i, i), string(raw))
	}

	assert.Equal(t, n, res.Pages)
	assert.Equal(t, n, res.Received)
	assert.Equal(t, a.Names(), res.Entries)
}

func TestLoad_EmptyLastPage(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()

	mock.SetSubjectPages(
		[]client.Subject{
			testutil.NewSubject(1, "kanji", "一", "One"),
			testutil.NewSubject(2, "vocabulary", "一つ", "One Thing"),
		},
		nil,
	)

	res, err := newLoader(t, newClient(t, mock), nil).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, mock.GetRequestCount(), "exactly two fetches")
	assert.Equal(t, 2, res.Pages)

	a, err := archive.Open(res.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"kanji_bank_1.json", "term_bank_1.json"}, bankNames(a.Names()))
}

func TestLoad_SparseEntriesAndPageIndices(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()

	mock.SetSubjectPages(
		// Page 1: kanji only.
		[]client.Subject{testutil.NewSubject(1, "kanji", "一", "One")},
		// Page 2: nothing valid.
		[]client.Subject{
			testutil.NewSubject(2, "radical", "ground", "Ground"),
			testutil.NewSubject(3, "kanji", "二"),
		},
		// Page 3: vocabulary only.
		[]client.Subject{testutil.NewSubject(4, "vocabulary", "三つ", "Three Things")},
		// Page 4: both.
		[]client.Subject{
			testutil.NewSubject(5, "vocabulary", "四つ", "Four Things"),
			testutil.NewSubject(6, "kanji", "四", "Four"),
		},
	)

	var pageIndices []int
	res, err := newLoader(t, newClient(t, mock), func(p Progress) {
		pageIndices = append(pageIndices, p.Page)
	}).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, pageIndices)
	assert.Equal(t, 4, mock.GetRequestCount())

	a, err := archive.Open(res.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"kanji_bank_1.json",
		"kanji_bank_4.json",
		"term_bank_3.json",
		"term_bank_4.json",
	}, bankNames(a.Names()))

	var rows []dictionary.Row
	require.NoError(t, a.DecodeFile("term_bank_4.json", &rows))
	assert.Equal(t, []dictionary.Row{{Identifier: "四つ", Meanings: []string{"Four Things"}}}, rows)
}

func TestLoad_Progress(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()

	mock.SetSubjectPages(
		[]client.Subject{
			testutil.NewSubject(1, "kanji", "一", "One"),
			testutil.NewSubject(2, "kanji", "二", "Two"),
		},
		[]client.Subject{testutil.NewSubject(3, "kanji", "三", "Three")},
	)

	var got []Progress
	_, err := newLoader(t, newClient(t, mock), func(p Progress) {
		got = append(got, p)
	}).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Page)
	assert.Len(t, got[0].Records, 2)
	assert.Equal(t, 2, got[0].Received)
	assert.Equal(t, 1000, got[0].Cursor)
	assert.Equal(t, 3, got[0].Total)

	assert.Equal(t, 2, got[1].Page)
	assert.Len(t, got[1].Records, 1)
	assert.Equal(t, 3, got[1].Received)
	assert.Equal(t, 2000, got[1].Cursor)
	assert.Equal(t, 3, got[1].Total)
}

func TestLoad_RequestsConfiguredTypes(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()
	mock.SetSubjectPages(nil)

	_, err := newLoader(t, newClient(t, mock), nil).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, mock.RequestURIs, 1)
	u, err := url.Parse(mock.RequestURIs[0])
	require.NoError(t, err)
	assert.Equal(t, "/v2/subjects", u.Path)
	assert.Equal(t, "kanji,vocabulary", u.Query().Get("types"))
	assert.Equal(t, "Bearer test-token", mock.GetLastRequestHeader().Get("Authorization"))
}

func TestLoad_FirstFetchFails(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()
	mock.SetResponse("/v2/subjects", testutil.NewServerErrorResponse(http.StatusServiceUnavailable))

	called := false
	res, err := newLoader(t, newClient(t, mock), func(Progress) { called = true }).Load(context.Background())

	require.Error(t, err)
	assert.Nil(t, res, "no archive on failure")
	assert.False(t, called, "progress must not be reported")

	var statusErr *client.HTTPStatusError
	require.True(t, errors.As(err, &statusErr), "error %T is not *HTTPStatusError", err)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "WaniKani connection error: 503", err.Error(), "error must propagate unwrapped")
}

func TestLoad_LaterFetchFails(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()

	next := mock.URL() + "/v2/subjects/page2"
	mock.SetResponse("/v2/subjects", testutil.NewHealthyResponse(
		testutil.NewPageBody(&next, testutil.NewSubject(1, "kanji", "一", "One")),
	))
	mock.SetResponse("/v2/subjects/page2", testutil.NewHealthyResponse(`{"error":"rate limited"}`))

	var pages []int
	res, err := newLoader(t, newClient(t, mock), func(p Progress) {
		pages = append(pages, p.Page)
	}).Load(context.Background())

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []int{1}, pages)
	assert.Equal(t, client.KindAPI, client.KindOf(err))
	assert.Equal(t, "WaniKani error: rate limited", err.Error())
	assert.Equal(t, 2, mock.GetRequestCount(), "no retries")
}

func TestLoad_MalformedPage(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()
	mock.SetResponse("/v2/subjects", testutil.NewHealthyResponse("<html>maintenance</html>"))

	_, err := newLoader(t, newClient(t, mock), nil).Load(context.Background())

	assert.Equal(t, client.KindMalformedResponse, client.KindOf(err))
	details, ok := client.DetailsOf(err)
	require.True(t, ok)
	assert.Equal(t, "<html>maintenance</html>", details.ResponseText)
}

func TestLoad_DisabledClient(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()
	mock.SetSubjectPages([]client.Subject{testutil.NewSubject(1, "kanji", "一", "One")})

	wk := newClient(t, mock)
	wk.SetEnabled(false)

	res, err := newLoader(t, wk, nil).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, mock.GetRequestCount())
	assert.Equal(t, 0, res.Pages)

	a, err := archive.Open(res.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{archive.ManifestName}, a.Names(), "manifest is always present")
}

func TestNew_Validation(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()
	wk := newClient(t, mock)

	tests := []struct {
		name     string
		fetcher  *client.Client
		opts     Options
		errorMsg string
	}{
		{
			name:    "zero options use defaults",
			fetcher: wk,
		},
		{
			name:     "nil fetcher",
			opts:     DefaultOptions(),
			errorMsg: "page fetcher is required",
		},
		{
			name:    "duplicate bank",
			fetcher: wk,
			opts: Options{Kinds: []dictionary.Kind{
				dictionary.KindKanji,
				{Bank: "kanji", Object: "radical"},
			}},
			errorMsg: `duplicate bank "kanji"`,
		},
		{
			name:     "incomplete kind",
			fetcher:  wk,
			opts:     Options{Kinds: []dictionary.Kind{{Bank: "kanji"}}},
			errorMsg: "kind must name both bank and object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l *Loader
			var err error
			if tt.fetcher == nil {
				l, err = New(nil, tt.opts)
			} else {
				l, err = New(tt.fetcher, tt.opts)
			}

			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.True(t, strings.HasPrefix(err.Error(), tt.errorMsg), "error = %q", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultResource, l.opts.Resource)
			assert.Equal(t, dictionary.DefaultKinds(), l.opts.Kinds)
			assert.Equal(t, archive.DefaultManifest, l.opts.Manifest)
			assert.Equal(t, tt.opts.Pagination, l.opts.Pagination, "pagination is used as given")
		})
	}
}

func TestLoadDictionary(t *testing.T) {
	mock := testutil.NewMockWaniKani()
	defer mock.Close()
	mock.SetSubjectPages(
		[]client.Subject{testutil.NewSubject(1, "kanji", "一", "One")},
		[]client.Subject{testutil.NewSubject(2, "vocabulary", "二つ", "Two Things")},
	)

	cfg := client.DefaultConfig("personal-token")
	cfg.BaseURL = mock.BaseURL()

	pages := 0
	data, err := LoadDictionary(context.Background(), cfg, func(Progress) { pages++ })
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	a, err := archive.Open(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"kanji_bank_1.json", "term_bank_2.json"}, bankNames(a.Names()))
	assert.Equal(t, "Bearer personal-token", mock.GetLastRequestHeader().Get("Authorization"))
}

// chainFetcher serves n chained pages of one kanji each.
type chainFetcher struct {
	n       int
	fetches int
}

func (f *chainFetcher) page(i int) *client.PageResult {
	f.fetches++
	p := &client.PageResult{
		Pages:      client.Pages{PerPage: 1},
		TotalCount: f.n,
		Data:       []client.Subject{testutil.NewSubject(i, "kanji", fmt.Sprintf("S%d", i), fmt.Sprintf("M%d", i))},
	}
	if i < f.n {
		next := fmt.Sprintf("https://api.test/v2/subjects?page=%d", i+1)
		p.Pages.NextURL = &next
	}
	return p
}

func (f *chainFetcher) FetchResource(ctx context.Context, resource string, params url.Values) (*client.PageResult, error) {
	return f.page(1), nil
}

func (f *chainFetcher) FetchByURL(ctx context.Context, rawURL string) (*client.PageResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	var i int
	if _, err := fmt.Sscanf(u.Query().Get("page"), "%d", &i); err != nil {
		return nil, err
	}
	return f.page(i), nil
}

func TestLoad_PageLimit(t *testing.T) {
	const pages = 501
	limit := pagination.DefaultConfig().MaxPages
	require.Less(t, limit, pages)

	tests := []struct {
		name        string
		pagination  pagination.Config
		wantErr     error
		wantFetches int
	}{
		{
			name:        "zero limit walks every page",
			pagination:  pagination.Config{MaxPages: 0},
			wantFetches: pages,
		},
		{
			name:        "default limit stops a long walk",
			pagination:  pagination.DefaultConfig(),
			wantErr:     pagination.ErrTooManyPages,
			wantFetches: limit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &chainFetcher{n: pages}

			opts := DefaultOptions()
			opts.Pagination = tt.pagination
			l, err := New(f, opts)
			require.NoError(t, err)

			res, err := l.Load(context.Background())
			assert.Equal(t, tt.wantFetches, f.fetches)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pages, res.Pages)
			assert.Len(t, res.Entries, pages+1)
		})
	}
}
