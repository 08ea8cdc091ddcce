package media

import "strings"

type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Record is the normalized movie/series metadata, built either from a
// TMDB lookup or field-by-field during manual entry. Title/Name and
// ReleaseDate/FirstAirDate mirror the movie-vs-series field split of the
// upstream API; consumers go through DisplayTitle/YearString.
type Record struct {
	Kind         Kind
	Title        string
	Name         string
	ReleaseDate  string
	FirstAirDate string
	Overview     string
	Rating       float64
	Genres       []string
	Cast         []string
	Director     string
	RuntimeMin   int
	PosterRef    string
	BackdropRef  string
	Language     string
	Quality      string
}

func (r *Record) DisplayTitle() string {
	return FirstNonEmpty(r.Title, r.Name, "N/A")
}

func (r *Record) YearString() string {
	date := FirstNonEmpty(r.ReleaseDate, r.FirstAirDate)
	if len(date) >= 4 {
		return date[:4]
	}
	return "----"
}

func (r *Record) HasTitle() bool {
	return strings.TrimSpace(r.Title) != "" || strings.TrimSpace(r.Name) != ""
}

type Link struct {
	Label string
	URL   string
}

func ValidLinkURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
