package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with a sunset date.
type DeprecatedRoute struct {
	Path        string
	SunsetDate  time.Time
	Alternative string // successor endpoint, optional
}

// LegacyRiskRoutes are the unversioned risk routes kept for old clients.
var LegacyRiskRoutes = []DeprecatedRoute{
	{Path: "/risk/location", SunsetDate: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC), Alternative: "/v1/risk/location"},
	{Path: "/risk/scores", SunsetDate: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC), Alternative: "/v1/risk/scores"},
}

// DeprecationMiddleware adds Deprecation (RFC 8594), Sunset and successor
// Link headers to deprecated endpoints.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	byPath := make(map[string]DeprecatedRoute, len(deprecated))
	for _, d := range deprecated {
		byPath[d.Path] = d
	}

	return func(c *fiber.Ctx) error {
		d, ok := byPath[c.Path()]
		if !ok {
			return c.Next()
		}

		c.Set("Deprecation", "true")
		c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))
		if d.Alternative != "" {
			c.Set("Link", fmt.Sprintf(`<%s>; rel="successor-version"`, d.Alternative))
		}
		days := max(time.Until(d.SunsetDate).Hours()/24, 0)
		c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))

		return c.Next()
	}
}
