// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package newznab

import "encoding/xml"

const (
	serverVersion = "0.1"
	serverTitle   = "Easynews Bridge"
	maxRequests   = 100

	// DefaultLimit is the page size used when a request has no limit.
	DefaultLimit = 100
)

type Caps struct {
	XMLName      xml.Name     `xml:"caps"`
	Server       CapsServer   `xml:"server"`
	Limits       CapsLimits   `xml:"limits"`
	Registration Registration `xml:"registration"`
	Searching    Searching    `xml:"searching"`
	Categories   []Category   `xml:"categories>category"`
}

type CapsServer struct {
	Version string `xml:"version,attr"`
	Title   string `xml:"title,attr"`
}

type CapsLimits struct {
	Max     int `xml:"maxrequests,attr"`
	Default int `xml:"defaultlimit,attr"`
}

type Registration struct {
	Available string `xml:"available,attr"`
	Open      string `xml:"open,attr"`
}

type Searching struct {
	Search      SearchCap `xml:"search"`
	MovieSearch SearchCap `xml:"movie-search"`
	TVSearch    SearchCap `xml:"tv-search"`
}

type SearchCap struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type Category struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// DefaultCaps describes what this server supports.
func DefaultCaps() Caps {
	return Caps{
		Server:       CapsServer{Version: serverVersion, Title: serverTitle},
		Limits:       CapsLimits{Max: maxRequests, Default: DefaultLimit},
		Registration: Registration{Available: "no", Open: "no"},
		Searching: Searching{
			Search:      SearchCap{Available: "yes", SupportedParams: "q"},
			MovieSearch: SearchCap{Available: "yes", SupportedParams: "q,year"},
			TVSearch:    SearchCap{Available: "yes", SupportedParams: "q,season,ep"},
		},
		Categories: []Category{{ID: CategoryMovies, Name: "Movies"}},
	}
}
