// Package pagination walks cursor-paginated WaniKani collections.
//
// WaniKani collections return a pages.next_url with every page; the URL of
// page n+1 is only known once page n has arrived. Pages are therefore
// fetched strictly one at a time, in order.
//
// Example usage:
//
//	w := pagination.NewWalker(wkClient, "subjects", url.Values{"types": {"kanji"}}, pagination.DefaultConfig())
//	for page, err := range w.Pages(ctx) {
//		if err != nil {
//			return err
//		}
//		handle(page.Index, page.Result.Data)
//	}
//
// The walker:
//   - Fetches the first page by resource name, every following page by next_url
//   - Numbers pages from 1, once per successful fetch
//   - Stops when next_url is null/empty or the fetcher returns no page
//   - Latches the first error and returns it unchanged (no retry, no partial recovery)
//
// A Walker is single use. Once Done or Failed it yields nothing further.
package pagination
