// Package osrm adapts an OSRM routing server to the RouteProvider port.
package osrm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samirrijal/saferoute/internal/adapters/upstream"
	"github.com/samirrijal/saferoute/internal/core/domain"
)

// DefaultBaseURL is the OSRM demo server.
const DefaultBaseURL = "https://router.project-osrm.org"

// Client implements ports.RouteProvider.
type Client struct {
	baseURL string
	profile string
	http    *upstream.Client
}

// New creates an OSRM client for the driving profile.
func New(baseURL string, opts ...upstream.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
		http:    upstream.New("osrm", opts...),
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route returns the full geometry of the first route, converted from OSRM's
// [lng, lat] pairs to coordinates.
func (c *Client) Route(ctx context.Context, origin, destination domain.Coordinate) ([]domain.Coordinate, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		c.baseURL, c.profile,
		origin.Lng, origin.Lat,
		destination.Lng, destination.Lat,
	)

	var res routeResponse
	status, err := c.http.GetJSON(ctx, url, &res)
	// OSRM answers 400 with a JSON code for unroutable requests.
	if status == http.StatusBadRequest {
		return nil, domain.NewError(domain.KindNoRouteFound, "osrm rejected the request", err)
	}
	if err != nil {
		return nil, err
	}
	if res.Code != "" && res.Code != "Ok" {
		return nil, domain.NewError(domain.KindNoRouteFound, fmt.Sprintf("osrm: %s %s", res.Code, res.Message), nil)
	}
	if len(res.Routes) == 0 {
		return nil, domain.NewError(domain.KindNoRouteFound, "osrm returned no routes", nil)
	}

	raw := res.Routes[0].Geometry.Coordinates
	polyline := make([]domain.Coordinate, 0, len(raw))
	for i, pair := range raw {
		if len(pair) < 2 {
			return nil, domain.NewError(domain.KindUpstreamUnavailable, fmt.Sprintf("osrm: malformed coordinate at %d", i), nil)
		}
		polyline = append(polyline, domain.Coordinate{Lat: pair[1], Lng: pair[0]})
	}
	return polyline, nil
}
