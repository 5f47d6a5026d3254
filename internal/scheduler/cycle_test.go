package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"yanderss/internal/feed"
	"yanderss/internal/index"
	"yanderss/internal/scheduler"
)

type keywordList []string

func (k keywordList) ListKeywords(context.Context) ([]string, error) {
	return k, nil
}

type failingList struct{}

func (failingList) ListKeywords(context.Context) ([]string, error) {
	return nil, errors.New("database is locked")
}

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/feeds/sky", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>sky</title><link>http://%[1]s</link><description>sky</description>
<item><title>1</title><link>http://%[1]s/post/show/1</link></item>
</channel></rss>`, r.Host)
	})
	mux.HandleFunc("/feeds/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/post/show/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<li><a class="original-file-unchanged" id="png" href="/image/1.png">PNG</a></li>`))
	})
	mux.HandleFunc("/image/1.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("png"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newCycle(t *testing.T, srv *httptest.Server, keywords scheduler.KeywordLister) (*scheduler.KeywordCycle, string) {
	t.Helper()

	log := slog.Default()
	indexPath := filepath.Join(t.TempDir(), "index.csv")
	fetcher := feed.NewFetcher(nil, time.Second, "", t.TempDir(), log)
	processor := feed.NewProcessor(fetcher, feed.NewExtractor(nil), "yande.re", log)
	poller := feed.NewPoller(fetcher, processor, nil, indexPath, log)

	feedURL := func(keyword string) string { return srv.URL + "/feeds/" + keyword }

	return scheduler.NewKeywordCycle(keywords, poller, feedURL, log), indexPath
}

func TestKeywordCycleSkipsUnavailableFeeds(t *testing.T) {
	srv := newFeedServer(t)
	cycle, indexPath := newCycle(t, srv, keywordList{"broken", "sky"})

	if err := cycle.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := index.Load(indexPath)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}

	if len(records) != 1 || records[0].FeedURL != srv.URL+"/feeds/sky" {
		t.Fatalf("unexpected records: %+v", records)
	}

	if records[0].AssetURL != srv.URL+"/image/1.png" || records[0].AssetName != "1.png" {
		t.Fatalf("unexpected asset: %+v", records[0])
	}
}

func TestKeywordCycleFailsWhenKeywordsUnavailable(t *testing.T) {
	srv := newFeedServer(t)
	cycle, _ := newCycle(t, srv, failingList{})

	if err := cycle.RunCycle(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestKeywordCycleStopsOnCancelledContext(t *testing.T) {
	srv := newFeedServer(t)
	cycle, indexPath := newCycle(t, srv, keywordList{"sky"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cycle.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	records, _ := index.Load(indexPath)
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
