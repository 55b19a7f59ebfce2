// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/nzbridge/internal/api/middleware"
	"github.com/autobrr/nzbridge/internal/easynews"
	"github.com/autobrr/nzbridge/internal/matching"
	"github.com/autobrr/nzbridge/internal/metrics"
	"github.com/autobrr/nzbridge/internal/newznab"
	"github.com/autobrr/nzbridge/internal/results"
	"github.com/autobrr/nzbridge/internal/selection"
)

const (
	rssContentType  = "application/rss+xml; charset=utf-8"
	capsContentType = "application/xml; charset=utf-8"
)

// Recorder receives per-request outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObserveSearch(mode string, stats results.Stats, elapsed time.Duration)
	ObserveManifest(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSearch(string, results.Stats, time.Duration) {}
func (nopRecorder) ObserveManifest(string)                             {}

// Settings are read on every request so config reloads apply without a
// restart.
type Settings struct {
	BaseURL           string
	TrustProxyHeaders bool
	PerPage           int
	MinSizeMB         int
}

type NewznabDependencies struct {
	Upstream easynews.Upstream
	Settings func() Settings
	Recorder Recorder
	// Now defaults to time.Now.
	Now func() time.Time
}

type NewznabHandler struct {
	upstream easynews.Upstream
	settings func() Settings
	recorder Recorder
	now      func() time.Time
	log      zerolog.Logger
}

func NewNewznabHandler(deps NewznabDependencies) *NewznabHandler {
	h := &NewznabHandler{
		upstream: deps.Upstream,
		settings: deps.Settings,
		recorder: deps.Recorder,
		now:      deps.Now,
		log:      log.With().Str("module", "newznab").Logger(),
	}
	if h.settings == nil {
		h.settings = func() Settings { return Settings{} }
	}
	if h.recorder == nil {
		h.recorder = nopRecorder{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// ServeAPI dispatches on the t parameter; a missing t means caps.
func (h *NewznabHandler) ServeAPI(w http.ResponseWriter, r *http.Request) {
	t := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("t")))
	if t == "" {
		t = "caps"
	}

	switch t {
	case "caps":
		h.Caps(w, r)
	case ModeSearch, ModeMovie, ModeTVSearch:
		h.Search(w, r, t)
	case "get", "getnzb":
		h.Get(w, r)
	default:
		RespondText(w, http.StatusBadRequest, "Unsupported 't' parameter")
	}
}

func (h *NewznabHandler) Caps(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := newznab.Write(&buf, newznab.DefaultCaps()); err != nil {
		h.log.Error().Err(err).Msg("failed to render caps")
		RespondText(w, http.StatusInternalServerError, "Failed to render caps")
		return
	}
	writeBody(w, capsContentType, buf.Bytes())
}

func (h *NewznabHandler) Search(w http.ResponseWriter, r *http.Request, mode string) {
	start := h.now()
	settings := h.settings()
	req := ParseSearchRequest(mode, r.URL.Query(), settings.MinSizeMB)

	logger := h.log.With().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("mode", mode).
		Str("label", req.Label).
		Logger()

	var page results.Page
	feedQuery := req.Label
	if results.IsSampleQuery(req.Label) {
		page = results.SamplePage(h.now(), req.Offset, req.Limit)
		feedQuery = results.SampleQuery
	} else {
		set, err := h.upstream.Search(r.Context(), req.Label, easynews.RelevanceSearch(settings.PerPage))
		if err != nil {
			logger.Error().Err(err).Msg("upstream search failed")
			respondUpstreamError(w, err)
			return
		}

		page = results.Assemble(set, results.Options{
			MinBytes: req.MinBytes(),
			Query:    matching.NewQueryMeta(req.Matching()),
			Offset:   req.Offset,
			Limit:    req.Limit,
		})
	}

	entries := make([]newznab.Entry, 0, len(page.Items))
	for _, item := range page.Items {
		id, err := selection.EncodeToken(tokenFor(item))
		if err != nil {
			logger.Error().Err(err).Str("hash", item.Hash).Msg("failed to encode id")
			continue
		}
		entries = append(entries, newznab.Entry{ID: id, Result: item})
	}

	feed := newznab.NewFeed(newznab.FeedOptions{
		Query:  feedQuery,
		Root:   requestRoot(r, settings.BaseURL, settings.TrustProxyHeaders),
		APIKey: apiKeyFor(r),
		Now:    h.now(),
	}, entries)

	var buf bytes.Buffer
	if err := newznab.Write(&buf, feed); err != nil {
		logger.Error().Err(err).Msg("failed to render feed")
		RespondText(w, http.StatusInternalServerError, "Failed to render feed")
		return
	}

	elapsed := h.now().Sub(start)
	h.recorder.ObserveSearch(mode, page.Stats, elapsed)
	logger.Debug().
		Int("seen", page.Stats.Seen).
		Int("malformed", page.Stats.Malformed).
		Int("undersized", page.Stats.Undersized).
		Int("flagged", page.Stats.Flagged).
		Int("unmatched", page.Stats.Unmatched).
		Int("kept", page.Stats.Kept).
		Int("served", len(entries)).
		Dur("elapsed", elapsed).
		Msg("search answered")

	writeBody(w, rssContentType, buf.Bytes())
}

func (h *NewznabHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		RespondText(w, http.StatusBadRequest, "Missing id")
		return
	}

	logger := h.log.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()

	token, err := selection.DecodeToken(id)
	if err != nil {
		logger.Warn().Err(err).Msg("rejected id")
		h.recorder.ObserveManifest(metrics.ManifestInvalidToken)
		RespondText(w, http.StatusBadRequest, "Invalid id")
		return
	}

	if token.Sample {
		h.recorder.ObserveManifest(metrics.ManifestSample)
		writeManifest(w, selection.SampleManifestName, selection.SampleManifest())
		return
	}

	payload := selection.BuildPayload([]selection.Item{selection.ItemFromToken(token)}, token.Title)
	content, err := h.upstream.PostSelection(r.Context(), payload)
	if err != nil {
		logger.Error().Err(err).Str("hash", token.Hash).Msg("upstream manifest request failed")
		h.recorder.ObserveManifest(metrics.ManifestUpstreamError)
		respondUpstreamError(w, err)
		return
	}

	content = selection.NormalizeManifest(content)
	if summary, err := selection.InspectManifest(content); err != nil {
		logger.Warn().Err(err).Str("hash", token.Hash).Msg("manifest does not parse as NZB")
	} else {
		logger.Debug().
			Str("hash", token.Hash).
			Int("files", summary.Files).
			Int("segments", summary.Segments).
			Int64("bytes", summary.Bytes).
			Msg("manifest served")
	}

	h.recorder.ObserveManifest(metrics.ManifestOK)
	writeManifest(w, selection.SafeFilename(token.DownloadName()), content)
}

func tokenFor(r results.Result) selection.Token {
	return selection.Token{
		Hash:     r.Hash,
		Filename: r.Filename,
		Ext:      r.Ext,
		Sig:      r.Sig,
		Title:    r.Title,
		Sample:   r.Sample,
	}
}

func respondUpstreamError(w http.ResponseWriter, err error) {
	var upstreamErr *easynews.UpstreamError
	if errors.As(err, &upstreamErr) {
		RespondText(w, http.StatusBadGateway, fmt.Sprintf("Upstream error %d", upstreamErr.StatusCode))
		return
	}
	RespondText(w, http.StatusBadGateway, "Upstream error")
}

func writeManifest(w http.ResponseWriter, name string, content []byte) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.nzb"`)
	writeBody(w, newznab.NZBMimeType, content)
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// requestRoot is the externally visible root of the server, honouring
// X-Forwarded-Proto and X-Forwarded-Host from a reverse proxy.
func requestRoot(r *http.Request, baseURL string, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if trustProxy {
		if proto := forwardedValue(r, "X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		if fwd := forwardedValue(r, "X-Forwarded-Host"); fwd != "" {
			host = fwd
		}
	}

	base := "/" + strings.Trim(baseURL, "/")
	return strings.TrimRight(scheme+"://"+host+base, "/") + "/"
}

// forwardedValue is the first entry of a comma separated proxy header.
func forwardedValue(r *http.Request, header string) string {
	v := r.Header.Get(header)
	if v == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(v, ",")[0]))
}

// apiKeyFor returns the key the caller authenticated with so download links
// work for the same client.
func apiKeyFor(r *http.Request) string {
	if key := r.URL.Query().Get("apikey"); key != "" {
		return key
	}
	return r.Header.Get(middleware.APIKeyHeader)
}
