package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that don't set their
// own. Risk data only changes on ingest, so it is cached for an hour.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() >= 400 {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			c.Set(fiber.HeaderCacheControl, "public, max-age=10")
		case path == "/metrics", strings.HasPrefix(path, "/ws"):
			c.Set(fiber.HeaderCacheControl, "no-cache")
		case strings.HasPrefix(path, "/v1/risk/"), strings.HasPrefix(path, "/risk/"):
			c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
		case strings.HasPrefix(path, "/v1/"):
			c.Set(fiber.HeaderCacheControl, "public, max-age=300")
		}
		return err
	}
}

// ETagMiddleware tags successful GET bodies with a weak ETag and answers 304
// when the client already holds it.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		sum := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(sum[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)

		for _, candidate := range strings.Split(c.Get(fiber.HeaderIfNoneMatch), ",") {
			if strings.TrimSpace(candidate) == etag {
				c.Status(fiber.StatusNotModified)
				c.Response().ResetBody()
				break
			}
		}
		return nil
	}
}
