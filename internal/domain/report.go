package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReportKind is the addressable event kind of long-form reports.
const ReportKind = 30023

const coordinateSeparator = ":"

type Report struct {
	ID        string
	Kind      int
	Author    string
	Slug      string
	Title     string
	Summary   string
	CreatedAt time.Time
}

func (r Report) Coordinate() string {
	kind := r.Kind
	if kind == 0 {
		kind = ReportKind
	}

	return FormatCoordinate(kind, r.Author, r.Slug)
}

type ReferencedReportItem struct {
	Coordinate string
	Title      string
	Slug       string
	Report     *Report
}

func (r ReferencedReportItem) Clone() ReferencedReportItem {
	if r.Report != nil {
		report := *r.Report
		r.Report = &report
	}
	return r
}

type Coordinate struct {
	Kind   int
	Pubkey string
	Slug   string
}

func FormatCoordinate(kind int, pubkey, slug string) string {
	return strings.Join([]string{strconv.Itoa(kind), pubkey, slug}, coordinateSeparator)
}

// ParseCoordinate parses "<kind>:<pubkey>:<slug>". The slug may itself contain
// the separator; everything after the second separator belongs to it.
func ParseCoordinate(raw string) (Coordinate, error) {
	parts := strings.Split(raw, coordinateSeparator)
	if len(parts) < 3 {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrMalformedCoordinate, raw)
	}

	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: kind %q", ErrMalformedCoordinate, parts[0])
	}

	slug := strings.Join(parts[2:], coordinateSeparator)
	if parts[1] == "" || slug == "" {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrMalformedCoordinate, raw)
	}

	return Coordinate{Kind: kind, Pubkey: parts[1], Slug: slug}, nil
}
