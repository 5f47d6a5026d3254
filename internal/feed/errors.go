package feed

import "errors"

var (
	// ErrFeedUnavailable means the feed could not be fetched or parsed.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrPageUnavailable means the entry page could not be fetched.
	ErrPageUnavailable = errors.New("page unavailable")
	// ErrNoAssetFound means no tier matched, or the matched tier had no href.
	ErrNoAssetFound = errors.New("no asset found")
	// ErrAssetFetchFailed means the asset could not be downloaded or written.
	ErrAssetFetchFailed = errors.New("asset fetch failed")
)
