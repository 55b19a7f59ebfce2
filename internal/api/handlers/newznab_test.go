// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/nzbridge/internal/easynews"
	"github.com/autobrr/nzbridge/internal/metrics"
	"github.com/autobrr/nzbridge/internal/newznab"
	"github.com/autobrr/nzbridge/internal/records"
	"github.com/autobrr/nzbridge/internal/results"
	"github.com/autobrr/nzbridge/internal/selection"
)

const mb = 1024 * 1024

type fakeUpstream struct {
	mu       sync.Mutex
	set      records.RawResultSet
	err      error
	manifest []byte
	queries  []string
	opts     []easynews.SearchOptions
	payloads []selection.Payload
}

func (f *fakeUpstream) Search(_ context.Context, query string, opts easynews.SearchOptions) (records.RawResultSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.opts = append(f.opts, opts)
	return f.set, f.err
}

func (f *fakeUpstream) PostSelection(_ context.Context, payload selection.Payload) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.manifest, f.err
}

type recordedSearch struct {
	mode  string
	stats results.Stats
}

type fakeRecorder struct {
	searches  []recordedSearch
	manifests []string
}

func (r *fakeRecorder) ObserveSearch(mode string, stats results.Stats, _ time.Duration) {
	r.searches = append(r.searches, recordedSearch{mode: mode, stats: stats})
}

func (r *fakeRecorder) ObserveManifest(outcome string) {
	r.manifests = append(r.manifests, outcome)
}

func movieRecord(hash, fn string, size int64) records.RawRecord {
	return records.MapRecord(map[string]any{
		"hash":     hash,
		"fn":       fn,
		"ext":      ".mkv",
		"size":     json.Number(itoa(size)),
		"type":     "VIDEO",
		"duration": "2h",
		"sig":      "sig-" + hash,
		"poster":   "poster@example.com",
		"dtime":    "2010-07-16 12:00:00",
	})
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(up *fakeUpstream, rec *fakeRecorder) *NewznabHandler {
	return NewNewznabHandler(NewznabDependencies{
		Upstream: up,
		Settings: func() Settings {
			return Settings{BaseURL: "/", PerPage: 250, MinSizeMB: 100}
		},
		Recorder: rec,
		Now:      func() time.Time { return fixedNow },
	})
}

func serve(h *NewznabHandler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeAPI(rec, req)
	return rec
}

type feedDoc struct {
	Channel struct {
		Title string `xml:"title"`
		Link  string `xml:"link"`
		Items []struct {
			Title string `xml:"title"`
			GUID  string `xml:"guid"`
			Link  string `xml:"link"`
			Attrs []struct {
				Name  string `xml:"name,attr"`
				Value string `xml:"value,attr"`
			} `xml:"http://www.newznab.com/DTD/2010/feeds/attributes/ attr"`
		} `xml:"item"`
	} `xml:"channel"`
}

func decodeFeed(t *testing.T, body string) feedDoc {
	t.Helper()
	var doc feedDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc))
	return doc
}

func TestServeAPI_DefaultsToCaps(t *testing.T) {
	h := newTestHandler(&fakeUpstream{}, &fakeRecorder{})

	rec := serve(h, "/api")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), `<server version="0.1" title="Easynews Bridge"></server>`)
	assert.Contains(t, rec.Body.String(), `<category id="2000" name="Movies"></category>`)
}

func TestServeAPI_UnsupportedMode(t *testing.T) {
	h := newTestHandler(&fakeUpstream{}, &fakeRecorder{})

	rec := serve(h, "/api?t=music")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported 't' parameter", rec.Body.String())
}

func TestSearch_MovieScenario(t *testing.T) {
	up := &fakeUpstream{set: records.RawResultSet{
		Records: []records.RawRecord{
			movieRecord("aaa111", "Inception.2010.1080p.BluRay", 4000*mb),
			movieRecord("bbb222", "Inception.2023.Fan.Edit", 4000*mb),
			movieRecord("ccc333", "Inception.2010.720p", 50*mb),
		},
		ThumbURL: "https://th.example.com/",
	}}
	rec := &fakeRecorder{}
	h := newTestHandler(up, rec)

	resp := serve(h, "/api?t=movie&q=Inception&year=2010&apikey=key")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "application/rss+xml")

	require.Len(t, up.queries, 1)
	assert.Equal(t, "Inception 2010", up.queries[0])
	assert.Equal(t, easynews.RelevanceSearch(250), up.opts[0])

	doc := decodeFeed(t, resp.Body.String())
	assert.Equal(t, "Results for Inception 2010", doc.Channel.Title)
	assert.Equal(t, "http://example.com/api", doc.Channel.Link)
	require.Len(t, doc.Channel.Items, 1)

	item := doc.Channel.Items[0]
	assert.Equal(t, "Inception.2010.1080p.BluRay.mkv", item.Title)
	assert.Equal(t, "http://example.com/api?t=get&id="+item.GUID+"&apikey=key", item.Link)

	token, err := selection.DecodeToken(item.GUID)
	require.NoError(t, err)
	assert.Equal(t, "aaa111", token.Hash)
	assert.Equal(t, "sig-aaa111", token.Sig)
	assert.False(t, token.Sample)

	attrs := map[string]string{}
	for _, a := range item.Attrs {
		attrs[a.Name] = a.Value
	}
	assert.Equal(t, "2010", attrs["year"])
	assert.Equal(t, "1080p", attrs["quality"])
	assert.Equal(t, "1279281600", attrs["posted"])

	require.Len(t, rec.searches, 1)
	assert.Equal(t, "movie", rec.searches[0].mode)
	assert.Equal(t, results.Stats{Seen: 3, Undersized: 1, Unmatched: 1, Kept: 1}, rec.searches[0].stats)
}

func TestSearch_SampleQueryNeverCallsUpstream(t *testing.T) {
	for _, target := range []string{"/api?t=search", "/api?t=search&q=test", "/api?t=tvsearch&q=TEST"} {
		t.Run(target, func(t *testing.T) {
			up := &fakeUpstream{}
			h := newTestHandler(up, &fakeRecorder{})

			resp := serve(h, target)
			require.Equal(t, http.StatusOK, resp.Code)
			assert.Empty(t, up.queries)

			doc := decodeFeed(t, resp.Body.String())
			assert.Equal(t, "Results for matrix", doc.Channel.Title)
			require.Len(t, doc.Channel.Items, 1)
			assert.Equal(t, results.SampleTitle, doc.Channel.Items[0].Title)

			token, err := selection.DecodeToken(doc.Channel.Items[0].GUID)
			require.NoError(t, err)
			assert.True(t, token.Sample)
			assert.Equal(t, results.SampleHash, token.Hash)
		})
	}
}

func TestSearch_OffsetBeyondResults(t *testing.T) {
	up := &fakeUpstream{set: records.RawResultSet{Records: []records.RawRecord{
		movieRecord("aaa111", "Show.S01E02.1080p", 400*mb),
	}}}
	h := newTestHandler(up, &fakeRecorder{})

	resp := serve(h, "/api?t=tvsearch&q=Show&season=1&ep=2&offset=5")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Show S01E02", up.queries[0])
	assert.Empty(t, decodeFeed(t, resp.Body.String()).Channel.Items)
}

func TestSearch_UpstreamError(t *testing.T) {
	up := &fakeUpstream{err: &easynews.UpstreamError{StatusCode: http.StatusServiceUnavailable, Op: "search"}}
	h := newTestHandler(up, &fakeRecorder{})

	resp := serve(h, "/api?t=search&q=Inception")
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, "Upstream error 503", resp.Body.String())
}

func TestGet(t *testing.T) {
	manifest := []byte(`<nzb><file poster="p" date="" subject="s"></file></nzb>`)
	title := "Inception (2010) 1080p / BluRay"
	id, err := selection.EncodeToken(selection.Token{Hash: "h0", Filename: "Movie", Ext: ".mkv", Sig: "abc", Title: title})
	require.NoError(t, err)

	up := &fakeUpstream{manifest: manifest}
	rec := &fakeRecorder{}
	h := newTestHandler(up, rec)

	resp := serve(h, "/api?t=getnzb&id="+id)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, newznab.NZBMimeType, resp.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Inception 2010 1080p  BluRay.nzb"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, `<nzb><file poster="p" date="0" subject="s"></file></nzb>`, resp.Body.String())

	require.Len(t, up.payloads, 1)
	name, ok := up.payloads[0].Get("nameZipQ0")
	require.True(t, ok)
	assert.Equal(t, title, name)
	sigKey, ok := up.payloads[0].Get("0&sig=abc")
	require.True(t, ok)
	assert.Equal(t, "h0|TW92aWU:Lm1rdg", sigKey)

	assert.Equal(t, []string{metrics.ManifestOK}, rec.manifests)
}

func TestGet_Sample(t *testing.T) {
	id, err := selection.EncodeToken(selection.Token{Hash: results.SampleHash, Title: results.SampleTitle, Sample: true})
	require.NoError(t, err)

	up := &fakeUpstream{}
	h := newTestHandler(up, &fakeRecorder{})

	resp := serve(h, "/api?t=get&id="+id)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, `attachment; filename="sample.nzb"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, string(selection.SampleManifest()), resp.Body.String())
	assert.Empty(t, up.payloads)
}

func TestGet_Errors(t *testing.T) {
	valid, err := selection.EncodeToken(selection.Token{Hash: "h0", Ext: ".mkv"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		target   string
		upErr    error
		wantCode int
		wantBody string
	}{
		{name: "missing id", target: "/api?t=get", wantCode: http.StatusBadRequest, wantBody: "Missing id"},
		{name: "garbage id", target: "/api?t=get&id=%25%25%25", wantCode: http.StatusBadRequest, wantBody: "Invalid id"},
		{
			name:     "upstream status",
			target:   "/api?t=get&id=" + valid,
			upErr:    &easynews.UpstreamError{StatusCode: http.StatusForbidden, Op: "dl-nzb"},
			wantCode: http.StatusBadGateway,
			wantBody: "Upstream error 403",
		},
		{
			name:     "transport failure",
			target:   "/api?t=get&id=" + valid,
			upErr:    errors.New("connection reset"),
			wantCode: http.StatusBadGateway,
			wantBody: "Upstream error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeUpstream{err: tt.upErr}, &fakeRecorder{})
			resp := serve(h, tt.target)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantBody, resp.Body.String())
		})
	}
}

func TestRequestRoot(t *testing.T) {
	tests := []struct {
		name       string
		baseURL    string
		trustProxy bool
		headers    map[string]string
		want       string
	}{
		{name: "plain", baseURL: "/", want: "http://bridge.local:8081/"},
		{name: "base path", baseURL: "/nzbridge/", want: "http://bridge.local:8081/nzbridge/"},
		{
			name:    "proxy headers ignored by default",
			headers: map[string]string{"X-Forwarded-Proto": "https", "X-Forwarded-Host": "evil.example.com"},
			want:    "http://bridge.local:8081/",
		},
		{
			name:       "trusted proxy",
			trustProxy: true,
			headers:    map[string]string{"X-Forwarded-Proto": "https, http", "X-Forwarded-Host": "nzb.example.com"},
			want:       "https://nzb.example.com/",
		},
		{
			name:       "unknown scheme from proxy",
			trustProxy: true,
			headers:    map[string]string{"X-Forwarded-Proto": "javascript"},
			want:       "http://bridge.local:8081/",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://bridge.local:8081/api", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, requestRoot(req, tt.baseURL, tt.trustProxy))
		})
	}
}

func TestSearch_ProxyHeadersNeedTrust(t *testing.T) {
	for _, trust := range []bool{false, true} {
		h := NewNewznabHandler(NewznabDependencies{
			Upstream: &fakeUpstream{},
			Settings: func() Settings {
				return Settings{BaseURL: "/", TrustProxyHeaders: trust, PerPage: 250, MinSizeMB: 100}
			},
			Now: func() time.Time { return fixedNow },
		})

		req := httptest.NewRequest(http.MethodGet, "http://bridge.local/api?t=search&apikey=k", nil)
		req.Header.Set("X-Forwarded-Host", "nzb.example.com")
		resp := httptest.NewRecorder()
		h.ServeAPI(resp, req)
		require.Equal(t, http.StatusOK, resp.Code)

		doc := decodeFeed(t, resp.Body.String())
		require.Len(t, doc.Channel.Items, 1)
		if trust {
			assert.Contains(t, doc.Channel.Items[0].Link, "http://nzb.example.com/api?")
		} else {
			assert.Contains(t, doc.Channel.Items[0].Link, "http://bridge.local/api?")
		}
	}
}
