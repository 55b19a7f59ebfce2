// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/autobrr/nzbridge/internal/api/handlers"
	"github.com/autobrr/nzbridge/internal/buildinfo"
	"github.com/autobrr/nzbridge/internal/config"
	"github.com/autobrr/nzbridge/internal/easynews"
	"github.com/autobrr/nzbridge/internal/matching"
	"github.com/autobrr/nzbridge/internal/results"
	"github.com/autobrr/nzbridge/internal/selection"
)

type searchFlags struct {
	configDir string
	mode      string
	year      int
	season    int
	episode   int
	strict    string
	limit     int
	offset    int
	minSize   int
	showIDs   bool
}

// values renders the flags as the query parameters the feed accepts, so the
// CLI and the server parse requests the same way.
func (f searchFlags) values(query string) url.Values {
	v := url.Values{}
	v.Set("q", query)
	if f.year > 0 {
		v.Set("year", strconv.Itoa(f.year))
	}
	if f.season >= 0 {
		v.Set("season", strconv.Itoa(f.season))
	}
	if f.episode >= 0 {
		v.Set("ep", strconv.Itoa(f.episode))
	}
	if f.strict != "" {
		v.Set("strict", f.strict)
	}
	v.Set("limit", strconv.Itoa(f.limit))
	v.Set("offset", strconv.Itoa(f.offset))
	if f.minSize > 0 {
		v.Set("minsize", strconv.Itoa(f.minSize))
	}
	return v
}

func RunSearchCommand() *cobra.Command {
	flags := searchFlags{}

	command := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a search through the feed pipeline and print the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}

			switch flags.mode {
			case handlers.ModeSearch, handlers.ModeMovie, handlers.ModeTVSearch:
			default:
				return fmt.Errorf("unsupported mode %q (search, movie, tvsearch)", flags.mode)
			}

			cfg, err := config.New(flags.configDir, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg.ApplyLogConfig()

			req := handlers.ParseSearchRequest(flags.mode, flags.values(query), cfg.Config.MinSizeMB)

			var page results.Page
			if results.IsSampleQuery(req.Label) {
				page = results.SamplePage(time.Now(), req.Offset, req.Limit)
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.UpstreamTimeout())
				defer cancel()

				client, err := easynews.NewClient(upstreamConfig(cfg.Config, cfg.UpstreamTimeout(), nil))
				if err != nil {
					return err
				}
				set, err := client.Search(ctx, req.Label, easynews.RelevanceSearch(cfg.Config.PerPage))
				if err != nil {
					return fmt.Errorf("search %q: %w", req.Label, err)
				}

				page = results.Assemble(set, results.Options{
					MinBytes: req.MinBytes(),
					Query:    matching.NewQueryMeta(req.Matching()),
					Offset:   req.Offset,
					Limit:    req.Limit,
				})
			}

			out := cmd.OutOrStdout()
			plain := !isTerminal(out)
			return printResults(out, page, flags.showIDs, plain)
		},
	}

	command.Flags().StringVar(&flags.configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&flags.mode, "mode", handlers.ModeSearch, "search mode: search, movie or tvsearch")
	command.Flags().IntVar(&flags.year, "year", 0, "release year")
	command.Flags().IntVar(&flags.season, "season", -1, "season number (tvsearch)")
	command.Flags().IntVar(&flags.episode, "episode", -1, "episode number (tvsearch)")
	command.Flags().StringVar(&flags.strict, "strict", "", "force strict phrase matching on or off (default on for movie)")
	command.Flags().IntVar(&flags.limit, "limit", 25, "maximum results to print")
	command.Flags().IntVar(&flags.offset, "offset", 0, "results to skip")
	command.Flags().IntVar(&flags.minSize, "min-size", 0, "minimum size in MB (never below 100)")
	command.Flags().BoolVar(&flags.showIDs, "ids", false, "include the download id of each result")

	return command
}

func printResults(w io.Writer, page results.Page, showIDs, plain bool) error {
	headers := []string{"Title", "Size", "Quality", "Duration", "Posted", "Group"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft}
	if showIDs {
		headers = append(headers, "ID")
		aligns = append(aligns, alignLeft)
	}

	rows := make([][]string, 0, len(page.Items))
	for _, item := range page.Items {
		posted := ""
		if item.Posted != nil {
			posted = humanize.Time(*item.Posted)
		}
		row := []string{
			item.Title,
			humanize.IBytes(uint64(item.Size)),
			item.Quality,
			item.DurationText,
			posted,
			item.Group,
		}
		if showIDs {
			id, err := selection.EncodeToken(selection.Token{
				Hash:     item.Hash,
				Filename: item.Filename,
				Ext:      item.Ext,
				Sig:      item.Sig,
				Title:    item.Title,
				Sample:   item.Sample,
			})
			if err != nil {
				return err
			}
			row = append(row, id)
		}
		rows = append(rows, row)
	}

	if _, err := fmt.Fprintln(w, renderTable(headers, rows, aligns, plain)); err != nil {
		return err
	}

	s := page.Stats
	_, err := fmt.Fprintf(w, "%s records: %d kept, %d malformed, %d undersized, %d flagged, %d unmatched\n",
		humanize.Comma(int64(s.Seen)), s.Kept, s.Malformed, s.Undersized, s.Flagged, s.Unmatched)
	return err
}

func RunDecodeIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode-id <id>",
		Short: "Print the selection carried by a feed download id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := selection.DecodeToken(args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(token)
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
