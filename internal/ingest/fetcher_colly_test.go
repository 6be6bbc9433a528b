package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quickCollyFetcher() *CollyFetcher {
	f := NewCollyFetcher()
	f.MaxRetries = 0
	f.DomainDelay = 0
	f.RandomDelayFactor = 0
	return f
}

func TestCollyFetcherHostWithPort(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/grants" {
			gotUA = r.Header.Get("User-Agent")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body><a href="/grants/x">Community Grant Round</a></body></html>`)
	}))
	defer srv.Close()

	f := quickCollyFetcher()
	// httptest URLs always carry an explicit port, which the allowed
	// domain check must tolerate.
	doc, err := f.Fetch(context.Background(), srv.URL+"/grants")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer doc.Body.Close()

	if doc.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", doc.StatusCode)
	}
	body, err := io.ReadAll(doc.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "Community Grant Round") {
		t.Errorf("body = %q, missing listing content", body)
	}
	if gotUA != "GrantScoutBot/1.0" {
		t.Errorf("User-Agent = %q, want the identifying bot string", gotUA)
	}
}

func TestCollyFetcherContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	f := quickCollyFetcher()
	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL+"/grants")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Fetch() blocked %v past its context", elapsed)
	}
}
