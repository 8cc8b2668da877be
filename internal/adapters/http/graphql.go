package http

import (
	"errors"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
)

var errCatalogDisabled = errors.New("risk catalog not configured")

// gqlError gives resolver errors a stable message with the kind in front so
// clients can branch on it.
func gqlError(err error) error {
	kind := domain.KindOf(err)
	if resp, ok := kindResponses[kind]; ok {
		return errors.New(string(kind) + ": " + resp.message)
	}
	return err
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	districtType := graphql.NewObject(graphql.ObjectConfig{
		Name: "District",
		Fields: graphql.Fields{
			"state":    &graphql.Field{Type: graphql.String},
			"district": &graphql.Field{Type: graphql.String},
		},
	})

	segmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Segment",
		Fields: graphql.Fields{
			"from":       &graphql.Field{Type: coordinateType},
			"to":         &graphql.Field{Type: coordinateType},
			"risk":       &graphql.Field{Type: graphql.String},
			"district":   &graphql.Field{Type: districtType},
			"distance_m": &graphql.Field{Type: graphql.Float},
		},
	})

	riskCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RiskCount",
		Fields: graphql.Fields{
			"category": &graphql.Field{Type: graphql.String},
			"count":    &graphql.Field{Type: graphql.Int},
		},
	})

	planType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Plan",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"origin":      &graphql.Field{Type: coordinateType},
			"destination": &graphql.Field{Type: coordinateType},
			"segments":    &graphql.Field{Type: graphql.NewList(segmentType)},
			"distance_m":  &graphql.Field{Type: graphql.Float},
			"polyline": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return EncodeWaypoints(p.Source.(*domain.PlanResult).Waypoints()), nil
				},
			},
			"risk_summary": &graphql.Field{
				Type: graphql.NewList(riskCountType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					summary := p.Source.(*domain.PlanResult).RiskSummary
					out := make([]map[string]interface{}, 0, len(summary))
					for cat, n := range summary {
						out = append(out, map[string]interface{}{"category": string(cat), "count": n})
					}
					sort.Slice(out, func(i, j int) bool {
						return out[i]["category"].(string) < out[j]["category"].(string)
					})
					return out, nil
				},
			},
		},
	})

	riskScoreType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RiskScore",
		Fields: graphql.Fields{
			"state":         &graphql.Field{Type: graphql.String},
			"district":      &graphql.Field{Type: graphql.String},
			"safety_score":  &graphql.Field{Type: graphql.Float},
			"risk_category": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"plan": &graphql.Field{
				Type:        planType,
				Description: "Plan a driving route and tag each segment with its district's risk",
				Args: graphql.FieldConfigArgument{
					"origin":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"destination": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"stride":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := domain.PlanRequest{
						Origin:      domain.Place(p.Args["origin"].(string)),
						Destination: domain.Place(p.Args["destination"].(string)),
						Stride:      p.Args["stride"].(int),
					}
					res, err := deps.Planner.Plan(p.Context, req, usecases.WithLogger(LoggerFromCtx(p.Context)))
					if err != nil {
						return nil, gqlError(err)
					}
					return res, nil
				},
			},
			"riskLocation": &graphql.Field{
				Type:        riskScoreType,
				Description: "Risk classification of one district",
				Args: graphql.FieldConfigArgument{
					"state":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"district": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Catalog == nil {
						return nil, errCatalogDisabled
					}
					score, err := deps.Catalog.Location(p.Context, p.Args["state"].(string), p.Args["district"].(string))
					if err != nil {
						return nil, gqlError(err)
					}
					return score, nil
				},
			},
			"riskStates": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "States with classified districts",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Catalog == nil {
						return nil, errCatalogDisabled
					}
					return deps.Catalog.States(p.Context)
				},
			},
			"riskDistricts": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Classified districts of a state",
				Args: graphql.FieldConfigArgument{
					"state": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Catalog == nil {
						return nil, errCatalogDisabled
					}
					districts, err := deps.Catalog.Districts(p.Context, p.Args["state"].(string))
					if err != nil {
						return nil, gqlError(err)
					}
					return districts, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
