// Package nominatim adapts an OpenStreetMap Nominatim server to the Geocoder
// and DistrictResolver ports.
package nominatim

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/samirrijal/saferoute/internal/adapters/upstream"
	"github.com/samirrijal/saferoute/internal/core/domain"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements ports.Geocoder and ports.DistrictResolver.
type Client struct {
	baseURL string
	http    *upstream.Client
}

// New creates a Nominatim client. The public instance requires an
// identifying User-Agent and at most one request per second.
func New(baseURL string, opts ...upstream.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    upstream.New("nominatim", opts...),
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve returns the coordinate of the first search candidate.
func (c *Client) Resolve(ctx context.Context, place domain.Place) (domain.Coordinate, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(string(place)))
	q.Set("format", "json")
	q.Set("limit", "1")

	var results []searchResult
	if _, err := c.http.GetJSON(ctx, c.baseURL+"/search?"+q.Encode(), &results); err != nil {
		return domain.Coordinate{}, fmt.Errorf("search %q: %w", place, err)
	}
	if len(results) == 0 {
		return domain.Coordinate{}, domain.NewError(domain.KindNoMatchFound,
			fmt.Sprintf("no match for %q", place), nil)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.Coordinate{}, domain.NewError(domain.KindUpstreamUnavailable, "nominatim: bad latitude "+results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.Coordinate{}, domain.NewError(domain.KindUpstreamUnavailable, "nominatim: bad longitude "+results[0].Lon, err)
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, nil
}

type reverseResult struct {
	Error   string `json:"error"`
	Address struct {
		State  string `json:"state"`
		County string `json:"county"`
		City   string `json:"city"`
		Town   string `json:"town"`
	} `json:"address"`
}

// ResolveDistrict reverse geocodes point. The district is the first non-empty
// of county, city and town; either part of the result may be empty, which
// the risk lookup rejects.
func (c *Client) ResolveDistrict(ctx context.Context, point domain.Coordinate) (domain.District, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(point.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(point.Lng, 'f', 6, 64))
	q.Set("format", "json")

	var res reverseResult
	if _, err := c.http.GetJSON(ctx, c.baseURL+"/reverse?"+q.Encode(), &res); err != nil {
		return domain.District{}, fmt.Errorf("reverse %s: %w", point, err)
	}
	if res.Error != "" {
		return domain.District{}, domain.NewError(domain.KindUnresolvedRegion,
			fmt.Sprintf("reverse %s: %s", point, res.Error), nil)
	}

	return domain.District{
		State:    res.Address.State,
		District: firstNonEmpty(res.Address.County, res.Address.City, res.Address.Town),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
