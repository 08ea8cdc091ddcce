package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"moviepost-tg-bot/internal/media"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/"
	maxResults     = 15
)

type Client struct {
	apiKey  string
	baseURL string
	hc      *http.Client
}

func NewClient(apiKey string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Candidate is one search hit: enough to label a selection button and to
// fetch full details afterwards.
type Candidate struct {
	Kind  media.Kind
	ID    int64
	Title string
	Year  string
}

type searchResult struct {
	ID           int64  `json:"id"`
	MediaType    string `json:"media_type"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

var queryYearRe = regexp.MustCompile(`^(.+?)\s*\(?(\d{4})\)?$`)

// SplitQueryYear extracts a trailing 4-digit year, bare or parenthesised,
// from a free-text query ("Inception 2010", "Inception (2010)").
func SplitQueryYear(query string) (string, string) {
	query = strings.TrimSpace(query)
	if m := queryYearRe.FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	return query, ""
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}
	name, year := SplitQueryYear(query)

	u, _ := url.Parse(c.baseURL + "/search/multi")
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("query", name)
	if year != "" {
		q.Set("year", year)
	}
	u.RawQuery = q.Encode()

	var out struct {
		Results []searchResult `json:"results"`
	}
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, limit)
	for _, r := range out.Results {
		if len(cands) >= limit {
			break
		}
		var kind media.Kind
		switch r.MediaType {
		case "movie":
			kind = media.KindMovie
		case "tv":
			kind = media.KindSeries
		default:
			continue
		}
		title := media.FirstNonEmpty(r.Title, r.Name)
		if title == "" {
			continue
		}
		y := "----"
		if date := media.FirstNonEmpty(r.ReleaseDate, r.FirstAirDate); len(date) >= 4 {
			y = date[:4]
		}
		cands = append(cands, Candidate{Kind: kind, ID: r.ID, Title: title, Year: y})
	}
	return cands, nil
}

type detailsResponse struct {
	Title          string `json:"title"`
	Name           string `json:"name"`
	ReleaseDate    string `json:"release_date"`
	FirstAirDate   string `json:"first_air_date"`
	Overview       string `json:"overview"`
	VoteAverage    float64 `json:"vote_average"`
	Runtime        int    `json:"runtime"`
	EpisodeRunTime []int  `json:"episode_run_time"`
	PosterPath     string `json:"poster_path"`
	BackdropPath   string `json:"backdrop_path"`
	Genres         []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
}

func (c *Client) Details(ctx context.Context, kind media.Kind, id int64) (*media.Record, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid id")
	}
	path := "movie"
	if kind == media.KindSeries {
		path = "tv"
	}
	u := fmt.Sprintf("%s/%s/%d?api_key=%s&append_to_response=credits", c.baseURL, path, id, url.QueryEscape(c.apiKey))

	var d detailsResponse
	if err := c.getJSON(ctx, u, &d); err != nil {
		return nil, err
	}

	rec := &media.Record{
		Kind:         kind,
		Title:        d.Title,
		Name:         d.Name,
		ReleaseDate:  d.ReleaseDate,
		FirstAirDate: d.FirstAirDate,
		Overview:     d.Overview,
		Rating:       d.VoteAverage,
		RuntimeMin:   d.Runtime,
		PosterRef:    d.PosterPath,
		BackdropRef:  d.BackdropPath,
	}
	if rec.RuntimeMin == 0 && len(d.EpisodeRunTime) > 0 {
		rec.RuntimeMin = d.EpisodeRunTime[0]
	}
	for _, g := range d.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			rec.Genres = append(rec.Genres, name)
		}
	}
	for i, a := range d.Credits.Cast {
		if i >= 5 {
			break
		}
		if name := strings.TrimSpace(a.Name); name != "" {
			rec.Cast = append(rec.Cast, name)
		}
	}
	for _, m := range d.Credits.Crew {
		if m.Job == "Director" {
			rec.Director = strings.TrimSpace(m.Name)
			break
		}
	}
	if !rec.HasTitle() {
		return nil, fmt.Errorf("tmdb details: empty record")
	}
	return rec, nil
}

var (
	tmdbURLRe   = regexp.MustCompile(`themoviedb\.org/(movie|tv)/(\d+)`)
	imdbIDRe    = regexp.MustCompile(`^tt\d{6,}$`)
	shorthandRe = regexp.MustCompile(`^(movie|tv)/(\d+)$`)
)

// ResolveExternalReference recognizes a TMDB URL, a bare IMDb id, or a
// kind/id shorthand and resolves it to (kind, id), bypassing search.
func (c *Client) ResolveExternalReference(ctx context.Context, text string) (media.Kind, int64, bool) {
	text = strings.TrimSpace(text)

	if m := tmdbURLRe.FindStringSubmatch(text); m != nil {
		id, _ := strconv.ParseInt(m[2], 10, 64)
		return kindFromPath(m[1]), id, id > 0
	}
	if m := shorthandRe.FindStringSubmatch(text); m != nil {
		id, _ := strconv.ParseInt(m[2], 10, 64)
		return kindFromPath(m[1]), id, id > 0
	}
	if imdbIDRe.MatchString(text) {
		u := fmt.Sprintf("%s/find/%s?api_key=%s&external_source=imdb_id", c.baseURL, url.PathEscape(text), url.QueryEscape(c.apiKey))
		var out struct {
			MovieResults []struct {
				ID int64 `json:"id"`
			} `json:"movie_results"`
			TVResults []struct {
				ID int64 `json:"id"`
			} `json:"tv_results"`
		}
		if err := c.getJSON(ctx, u, &out); err != nil {
			return "", 0, false
		}
		if len(out.MovieResults) > 0 {
			return media.KindMovie, out.MovieResults[0].ID, true
		}
		if len(out.TVResults) > 0 {
			return media.KindSeries, out.TVResults[0].ID, true
		}
	}
	return "", 0, false
}

func kindFromPath(p string) media.Kind {
	if p == "tv" {
		return media.KindSeries
	}
	return media.KindMovie
}

// ImageURL builds an image CDN URL from a TMDB path; absolute URLs
// (manual posters) pass through untouched.
func ImageURL(path string, size string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	return imageBaseURL + size + path
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tmdb status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(v)
}
