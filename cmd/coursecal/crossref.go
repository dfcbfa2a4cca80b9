package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coursecal/internal/crossref"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/match"
	"coursecal/internal/model"
)

const (
	formatJSON = "json"
	formatICS  = "ics"
)

type crossRefOptions struct {
	source      string
	assignments []string
	days        int
	keywords    []string
	fallback    string
	format      string
	cacheDir    string
	userAgent   string
}

func newCrossRefCmd() *cobra.Command {
	var opts crossRefOptions

	cmd := &cobra.Command{
		Use:   "crossref",
		Short: "Match assignments against a schedule feed and print the results",
		Long: `Read a schedule feed (URL or file) and one or more JSON files holding
assignment arrays, then print one result per assignment with its matching
events and, for undated assignments, an implied deadline.

Keyword pairs are given as --keyword assignment=event and may be repeated.
Without keywords, --fallback selects fuzzy word matching or the built-in
keyword table.`,
		Example: `  coursecal crossref --ics https://cloud.timeedit.net/x/ri.ics --assignments assignments.json
  curl -s $CANVAS/assignments | coursecal crossref --ics schedule.ics --keyword dante=mixerbord
  coursecal crossref --ics schedule.ics --assignments a.json --format ics > deadlines.ics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrossRef(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "ics", "", "Schedule feed URL or file path")
	f.StringArrayVar(&opts.assignments, "assignments", []string{"-"}, "Assignments JSON file, or - for stdin (repeatable)")
	f.IntVar(&opts.days, "days", crossref.DefaultDaysAhead, "Only consider events starting within this many days")
	f.StringArrayVar(&opts.keywords, "keyword", nil, "Keyword pair assignment=event (repeatable)")
	f.StringVar(&opts.fallback, "fallback", string(match.FallbackFuzzy), "Matching without keywords: fuzzy or default-table")
	f.StringVar(&opts.format, "format", formatJSON, "Output format: json or ics")
	f.StringVar(&opts.cacheDir, "cache-dir", ics.DefaultCacheDir, "Directory for cached feed bodies")
	f.StringVar(&opts.userAgent, "user-agent", ics.DefaultUserAgent, "User-Agent for feed requests")
	_ = cmd.MarkFlagRequired("ics")
	return cmd
}

func runCrossRef(cmd *cobra.Command, opts crossRefOptions) error {
	if opts.format != formatJSON && opts.format != formatICS {
		return fmt.Errorf("unknown format %q (want json or ics)", opts.format)
	}
	fallback := match.Fallback(opts.fallback)
	if fallback != match.FallbackFuzzy && fallback != match.FallbackDefaultTable {
		return fmt.Errorf("unknown fallback %q (want fuzzy or default-table)", opts.fallback)
	}
	if opts.days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", opts.days)
	}

	pairs, err := parseKeywords(opts.keywords)
	if err != nil {
		return err
	}

	lists := make([][]model.Assignment, 0, len(opts.assignments))
	for _, src := range opts.assignments {
		list, err := readAssignments(src, cmd.InOrStdin())
		if err != nil {
			return err
		}
		lists = append(lists, list)
	}
	assignments := crossref.MergeAssignments(lists...)

	fetcher := ics.NewFetcher(opts.cacheDir, ics.WithUserAgent(opts.userAgent))
	text, err := ics.ReadSource(cmd.Context(), fetcher, opts.source)
	if err != nil {
		return err
	}
	events := ics.Parse(text)

	m := match.New(match.Config{Keywords: pairs, Fallback: fallback})
	results := crossref.New(m).Run(assignments, events, opts.days)

	appLog.Info("crossref done",
		"assignments", len(assignments),
		"events", len(events),
		"results", len(results),
		"fuzzy", m.Fuzzy(),
	)

	out := cmd.OutOrStdout()
	if opts.format == formatICS {
		_, err := io.WriteString(out, ics.ExportDeadlines(results, time.Now()))
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// parseKeywords turns "assignment=event" flag values into keyword pairs.
func parseKeywords(values []string) ([]model.KeywordPair, error) {
	pairs := make([]model.KeywordPair, 0, len(values))
	for _, v := range values {
		a, e, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --keyword %q: want assignment=event", v)
		}
		pairs = append(pairs, model.KeywordPair{
			Assignment: strings.TrimSpace(a),
			Event:      strings.TrimSpace(e),
		})
	}
	return pairs, nil
}

// readAssignments decodes a JSON array of assignments from a file, or from
// stdin when src is "-".
func readAssignments(src string, stdin io.Reader) ([]model.Assignment, error) {
	var r io.Reader
	if src == "-" {
		r = stdin
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open assignments: %w", err)
		}
		defer f.Close()
		r = f
	}

	var list []model.Assignment
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("assignments %s: empty input", src)
		}
		return nil, fmt.Errorf("assignments %s: %w", src, err)
	}
	return list, nil
}
