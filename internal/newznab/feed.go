// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package newznab renders the RSS and caps documents served on /api.
package newznab

import (
	"encoding/xml"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/nzbridge/internal/results"
)

const (
	Namespace      = "http://www.newznab.com/DTD/2010/feeds/attributes/"
	CategoryMovies = 2000
	NZBMimeType    = "application/x-nzb"

	untitled = "Untitled"
)

type RSS struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	Namespace string   `xml:"xmlns:newznab,attr"`
	Channel   Channel  `xml:"channel"`
}

type Channel struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Items       []Item `xml:"item"`
}

type Item struct {
	Title     string    `xml:"title"`
	GUID      GUID      `xml:"guid"`
	Link      string    `xml:"link"`
	Category  int       `xml:"category"`
	PubDate   string    `xml:"pubDate"`
	Attrs     []Attr    `xml:"newznab:attr"`
	Enclosure Enclosure `xml:"enclosure"`
}

type GUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type Attr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Entry is a result together with the opaque id that retrieves it.
type Entry struct {
	ID     string
	Result results.Result
}

// FeedOptions describes the request a feed answers.
type FeedOptions struct {
	// Query is shown in the channel title.
	Query string
	// Root is the externally visible server root, e.g. "http://host:8080/".
	Root   string
	APIKey string
	Now    time.Time
}

// NewFeed builds the RSS document for entries. Results without a usable
// posted time are dated at opts.Now.
func NewFeed(opts FeedOptions, entries []Entry) RSS {
	now := opts.Now.UTC()
	title := "Results for " + opts.Query
	apiURL := APIURL(opts.Root)

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, newItem(e, apiURL, opts.APIKey, now))
	}

	return RSS{
		Version:   "2.0",
		Namespace: Namespace,
		Channel: Channel{
			Title:       title,
			Description: title,
			Link:        apiURL,
			PubDate:     now.Format(time.RFC1123Z),
			Items:       items,
		},
	}
}

func newItem(e Entry, apiURL, apiKey string, now time.Time) Item {
	r := e.Result

	posted := now
	if r.Posted != nil {
		posted = r.Posted.UTC()
	}
	postedStr := posted.Format(time.RFC1123Z)
	link := DownloadLink(apiURL, e.ID, apiKey)

	title := r.Title
	if title == "" {
		title = untitled
	}

	attrs := []Attr{
		{Name: "size", Value: strconv.FormatInt(r.Size, 10)},
		{Name: "category", Value: strconv.Itoa(CategoryMovies)},
		{Name: "usenetdate", Value: postedStr},
		{Name: "posted", Value: strconv.FormatInt(posted.Unix(), 10)},
	}
	attrs = appendString(attrs, "poster", r.Poster)
	attrs = appendString(attrs, "quality", r.Quality)
	attrs = appendString(attrs, "duration", r.DurationText)
	attrs = appendString(attrs, "thumb", r.ThumbnailURL)
	attrs = appendInt(attrs, "year", r.Year)
	attrs = appendInt(attrs, "season", r.Season)
	attrs = appendInt(attrs, "episode", r.Episode)
	attrs = appendString(attrs, "team", r.Group)
	attrs = appendString(attrs, "source", r.Source)

	return Item{
		Title:     title,
		GUID:      GUID{IsPermaLink: false, Value: e.ID},
		Link:      link,
		Category:  CategoryMovies,
		PubDate:   postedStr,
		Attrs:     attrs,
		Enclosure: Enclosure{URL: link, Length: r.Size, Type: NZBMimeType},
	}
}

func appendString(attrs []Attr, name, value string) []Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, Attr{Name: name, Value: value})
}

func appendInt(attrs []Attr, name string, value *int) []Attr {
	if value == nil {
		return attrs
	}
	return append(attrs, Attr{Name: name, Value: strconv.Itoa(*value)})
}

// APIURL is root with "/api" appended.
func APIURL(root string) string {
	return strings.TrimRight(root, "/") + "/api"
}

// DownloadLink is the t=get URL for id. The api key is carried along so
// download clients can fetch without extra configuration.
func DownloadLink(apiURL, id, apiKey string) string {
	link := apiURL + "?t=get&id=" + url.QueryEscape(id)
	if apiKey != "" {
		link += "&apikey=" + url.QueryEscape(apiKey)
	}
	return link
}

// Write encodes doc with the XML declaration.
func Write(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(doc)
}
