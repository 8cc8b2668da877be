package domain

import (
	"strings"
	"time"
)

// Place is a free-text location supplied by the user.
type Place string

// Validate trims the place and rejects empty input.
func (p Place) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return NewError(KindInvalidInput, "place must not be empty", nil)
	}
	return nil
}

// District is the administrative region used as the risk classification key.
type District struct {
	State    string `json:"state"`
	District string `json:"district"`
}

// Validate fails with UnresolvedRegion when either part is missing.
func (d District) Validate() error {
	switch {
	case strings.TrimSpace(d.State) == "":
		return NewError(KindUnresolvedRegion, "reverse geocoding returned no state", nil)
	case strings.TrimSpace(d.District) == "":
		return NewError(KindUnresolvedRegion, "reverse geocoding returned no county, city or town for "+d.State, nil)
	}
	return nil
}

// RiskCategory is the coarse safety classification attached to a segment.
type RiskCategory string

const (
	RiskLow      RiskCategory = "Low"
	RiskModerate RiskCategory = "Moderate"
	RiskHigh     RiskCategory = "High"
	RiskUnknown  RiskCategory = "Unknown"
)

// ParseRiskCategory maps a classifier label such as "High Risk" to a
// RiskCategory. Unrecognised labels map to RiskUnknown.
func ParseRiskCategory(label string) RiskCategory {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.TrimSpace(strings.TrimSuffix(l, "risk"))
	switch l {
	case "low":
		return RiskLow
	case "moderate", "medium":
		return RiskModerate
	case "high":
		return RiskHigh
	default:
		return RiskUnknown
	}
}

// Normalize returns c when it is one of the known categories and RiskUnknown
// otherwise.
func (c RiskCategory) Normalize() RiskCategory {
	switch c {
	case RiskLow, RiskModerate, RiskHigh, RiskUnknown:
		return c
	}
	return RiskUnknown
}

// CategoryForScore applies the classifier thresholds to a 0-100 safety score.
func CategoryForScore(score float64) RiskCategory {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// RiskScore is a classification for one district.
type RiskScore struct {
	State       string       `json:"state"`
	District    string       `json:"district"`
	SafetyScore float64      `json:"safety_score"`
	Category    RiskCategory `json:"risk_category"`
}

// Segment is the straight-line pair between two consecutive waypoints.
// Risk and District describe the leading endpoint (From) only.
type Segment struct {
	From           Coordinate   `json:"from"`
	To             Coordinate   `json:"to"`
	Risk           RiskCategory `json:"risk"`
	District       District     `json:"district"`
	DistanceMeters float64      `json:"distance_m"`
}

// PlanRequest is the input of one planning run.
type PlanRequest struct {
	Origin      Place `json:"origin"`
	Destination Place `json:"destination"`
	// Stride overrides the configured decimation stride when positive.
	Stride int `json:"stride,omitempty"`
}

// PlanResult is the risk-tagged route returned by a successful run.
type PlanResult struct {
	ID             string               `json:"id"`
	Origin         Coordinate           `json:"origin"`
	Destination    Coordinate           `json:"destination"`
	Segments       []Segment            `json:"segments"`
	DistanceMeters float64              `json:"distance_m"`
	RiskSummary    map[RiskCategory]int `json:"risk_summary"`
}

// Waypoints returns the ordered waypoints the segments were built from.
func (r *PlanResult) Waypoints() []Coordinate {
	if len(r.Segments) == 0 {
		return nil
	}
	out := make([]Coordinate, 0, len(r.Segments)+1)
	for _, s := range r.Segments {
		out = append(out, s.From)
	}
	return append(out, r.Segments[len(r.Segments)-1].To)
}

// PlanStage is a state of the planning pipeline.
type PlanStage string

const (
	StageIdle        PlanStage = "idle"
	StageGeocoding   PlanStage = "geocoding"
	StageRouting     PlanStage = "routing"
	StageSimplifying PlanStage = "simplifying"
	StageSegmenting  PlanStage = "segmenting"
	StageDone        PlanStage = "done"
	StageFailed      PlanStage = "failed"
)

// Terminal reports whether no further transition is possible.
func (s PlanStage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// StageEvent is emitted on every pipeline transition.
type StageEvent struct {
	PlanID string    `json:"plan_id"`
	Stage  PlanStage `json:"stage"`
	Err    error     `json:"-"`
	At     time.Time `json:"at"`
}
