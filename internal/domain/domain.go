package domain

import "time"

// Entry is one item of a polled feed, identified by its detail-page URL.
type Entry struct {
	Link    string
	FeedURL string
}

// AssetLink is the downloadable resource found on an entry page.
type AssetLink struct {
	URL  string
	Tier string
}

// Asset describes a file written by the asset fetcher.
type Asset struct {
	URL  string
	Name string
	Path string
	Tier string
}

// DownloadRecord is one row of the dedup index.
type DownloadRecord struct {
	Source       string
	EntryURL     string
	FeedURL      string
	AssetURL     string
	AssetName    string
	DownloadedAt time.Time
}

type PollStats struct {
	Entries    int
	Skipped    int
	Downloaded int
	Failed     int
}

func (s *PollStats) Add(other PollStats) {
	s.Entries += other.Entries
	s.Skipped += other.Skipped
	s.Downloaded += other.Downloaded
	s.Failed += other.Failed
}
