// Package googlemaps adapts the Google Maps Platform web services to the
// Geocoder, RouteProvider and DistrictResolver ports.
package googlemaps

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	maps "googlemaps.github.io/maps"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/pkg/metrics"
)

// Client implements ports.Geocoder, ports.RouteProvider and
// ports.DistrictResolver.
type Client struct {
	maps *maps.Client
}

// New creates a Google Maps client. baseURL is only set in tests.
func New(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("maps.NewClient: %w", err)
	}
	return &Client{maps: mc}, nil
}

// Resolve geocodes place and returns the first result.
func (c *Client) Resolve(ctx context.Context, place domain.Place) (coord domain.Coordinate, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("google_geocode", start, upstreamErr(err)) }()

	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: strings.TrimSpace(string(place))})
	if err != nil && !isZeroResults(err) {
		return domain.Coordinate{}, translate(ctx, "geocode", err)
	}
	if len(results) == 0 {
		return domain.Coordinate{}, domain.NewError(domain.KindNoMatchFound, fmt.Sprintf("no match for %q", place), nil)
	}
	loc := results[0].Geometry.Location
	return domain.Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Route requests driving directions and decodes the overview polyline of the
// first route.
func (c *Client) Route(ctx context.Context, origin, destination domain.Coordinate) (polyline []domain.Coordinate, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("google_directions", start, upstreamErr(err)) }()

	routes, _, err := c.maps.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil && !isZeroResults(err) {
		return nil, translate(ctx, "directions", err)
	}
	if len(routes) == 0 {
		return nil, domain.NewError(domain.KindNoRouteFound, "google returned no routes", nil)
	}

	points, err := routes[0].OverviewPolyline.Decode()
	if err != nil {
		return nil, domain.NewError(domain.KindUpstreamUnavailable, "decode overview polyline", err)
	}
	polyline = make([]domain.Coordinate, len(points))
	for i, p := range points {
		polyline[i] = domain.Coordinate{Lat: p.Lat, Lng: p.Lng}
	}
	return polyline, nil
}

// ResolveDistrict reverse geocodes point. The state is the first-level
// administrative area; the district is the second-level area, falling back to
// the locality and then the sublocality.
func (c *Client) ResolveDistrict(ctx context.Context, point domain.Coordinate) (d domain.District, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("google_reverse", start, upstreamErr(err)) }()

	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: point.Lat, Lng: point.Lng},
	})
	if err != nil && !isZeroResults(err) {
		return domain.District{}, translate(ctx, "reverse geocode", err)
	}
	if len(results) == 0 {
		return domain.District{}, domain.NewError(domain.KindUnresolvedRegion, "no address at "+point.String(), nil)
	}

	var county, city, town string
	for _, comp := range results[0].AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "administrative_area_level_1":
				d.State = comp.LongName
			case "administrative_area_level_2":
				county = comp.LongName
			case "locality":
				city = comp.LongName
			case "sublocality":
				town = comp.LongName
			}
		}
	}
	for _, v := range []string{county, city, town} {
		if v != "" {
			d.District = v
			break
		}
	}
	return d, nil
}

func latLng(c domain.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}

func isZeroResults(err error) bool {
	return strings.Contains(err.Error(), "ZERO_RESULTS")
}

func translate(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return domain.NewError(domain.KindUpstreamUnavailable, "google "+op, err)
}

// upstreamErr reports only transport-level failures to the metrics.
func upstreamErr(err error) error {
	if domain.KindOf(err) == domain.KindUpstreamUnavailable {
		return err
	}
	return nil
}
