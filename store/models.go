package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which acquisition service owns a request.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindMovie || k == KindShow
}

// Record is a persisted media request. A record only exists once the
// acquisition service accepted the request.
type Record struct {
	ID               int64     `json:"id"`
	Kind             Kind      `json:"kind"`
	Title            string    `json:"title"`
	ExternalID       string    `json:"externalId"`
	AcquisitionID    string    `json:"acquisitionId"`
	ReleaseDate      string    `json:"releaseDate"`
	PosterURL        string    `json:"posterUrl,omitempty"`
	Seasons          []int     `json:"seasons,omitempty"`
	RequestedBy      string    `json:"requestedBy"`
	RequestedByEmail string    `json:"requestedByEmail"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Year returns the release year used for library matching.
func (r *Record) Year() string {
	return ReleaseYear(r.ReleaseDate)
}

// ReleaseYear extracts the year from a YYYY or YYYY-MM-DD date.
func ReleaseYear(date string) string {
	year, _, _ := strings.Cut(date, "-")
	return year
}

// ListOptions narrows a List call. Zero values match everything.
type ListOptions struct {
	Kind        Kind
	RequestedBy string
}

func formatSeasons(seasons []int) string {
	parts := make([]string, len(seasons))
	for i, s := range seasons {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

func parseSeasons(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	seasons := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse season %q: %w", p, err)
		}
		seasons = append(seasons, n)
	}
	return seasons, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
