// Package risk converts detection event batches into explainable risk
// assessments. The engine is pure: identical events and context always
// produce an identical assessment.
package risk

import (
	"math"
	"strings"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
)

// Level is a discretized risk band
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Reason codes emitted when an individual factor crosses its significance
// threshold.
const (
	ReasonBehavioralAnomaly = "BEHAVIORAL_ANOMALY"
	ReasonHighRiskLocation  = "HIGH_RISK_LOCATION"
	ReasonHighRiskTime      = "HIGH_RISK_TIME"
	ReasonAdverseConditions = "ADVERSE_CONDITIONS"
)

// CrowdDensity classifies how busy the scene is
type CrowdDensity string

const (
	CrowdLow    CrowdDensity = "low"
	CrowdNormal CrowdDensity = "normal"
	CrowdHigh   CrowdDensity = "high"
)

// Context carries the situational inputs for an assessment. Timestamp is the
// assessment clock; passing it in keeps AssessRisk deterministic.
type Context struct {
	Location     string       `json:"location"`
	Timestamp    time.Time    `json:"timestamp"`
	Weather      string       `json:"weather,omitempty"`
	Traffic      string       `json:"traffic,omitempty"`
	CrowdDensity CrowdDensity `json:"crowd_density,omitempty"`
}

// Factors holds the four independent risk contributions, each in [0,1].
type Factors struct {
	Behavioral  float64  `json:"behavioral_risk"`
	Spatial     float64  `json:"spatial_risk"`
	Temporal    float64  `json:"temporal_risk"`
	Contextual  float64  `json:"contextual_risk"`
	ReasonCodes []string `json:"reason_codes"`
}

// Assessment is the combined, explainable risk output for one event batch.
// Immutable once produced.
type Assessment struct {
	Score             float64   `json:"risk_score"`
	Level             Level     `json:"risk_level"`
	Factors           Factors   `json:"factors"`
	RecommendedAction string    `json:"recommended_action"`
	Confidence        float64   `json:"confidence"`
	Timestamp         time.Time `json:"timestamp"`
}

// Combination weights; fixed design constants, not learned.
const (
	weightBehavioral = 0.4
	weightSpatial    = 0.3
	weightTemporal   = 0.2
	weightContextual = 0.1
)

// engineConfidence is a constant model confidence, not a statistical
// property of the input.
const engineConfidence = 0.85

// loiterThreshold is the batch time span beyond which loitering contributes
// strongly to behavioral risk.
const loiterThreshold = 5 * time.Minute

// reasonThreshold is the per-factor significance cutoff for reason codes.
const reasonThreshold = 0.5

type zone struct {
	keyword    string
	multiplier float64
}

// highRiskZones are matched as substrings of the context location.
var highRiskZones = []zone{
	{"airport", 1.5},
	{"government", 1.3},
	{"school", 1.2},
}

// Engine scores detection event batches. It holds no mutable state and is
// safe for concurrent use.
type Engine struct{}

// NewEngine creates a risk scoring engine.
func NewEngine() *Engine { return &Engine{} }

// AssessRisk computes a weighted, explainable assessment for a batch of
// events plus situational context. An empty batch yields zero behavioral
// risk, never an error.
func (e *Engine) AssessRisk(events []detection.Event, ctx Context) Assessment {
	behavioral := behavioralRisk(events)
	spatial := spatialRisk(ctx)
	temporal := temporalRisk(ctx)
	contextual := contextualRisk(ctx)

	score := weightBehavioral*behavioral +
		weightSpatial*spatial +
		weightTemporal*temporal +
		weightContextual*contextual

	return Assessment{
		Score: score,
		Level: LevelForScore(score),
		Factors: Factors{
			Behavioral:  behavioral,
			Spatial:     spatial,
			Temporal:    temporal,
			Contextual:  contextual,
			ReasonCodes: reasonCodes(behavioral, spatial, temporal, contextual),
		},
		RecommendedAction: ActionForLevel(LevelForScore(score)),
		Confidence:        engineConfidence,
		Timestamp:         ctx.Timestamp,
	}
}

// LevelForScore maps a score onto the risk band partition of [0,1].
func LevelForScore(score float64) Level {
	switch {
	case score < 0.3:
		return LevelLow
	case score < 0.6:
		return LevelMedium
	case score < 0.8:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// ActionForLevel maps a risk band to its fixed recommended action.
func ActionForLevel(level Level) string {
	switch level {
	case LevelLow:
		return "Log only"
	case LevelMedium:
		return "Operator notification"
	case LevelHigh:
		return "Supervisor review"
	default:
		return "Immediate human response"
	}
}

// behavioralRisk scores movement patterns: sudden motion change, loitering,
// and directional conflict each add a fixed increment, capped at 1.
func behavioralRisk(events []detection.Event) float64 {
	if len(events) == 0 {
		return 0
	}

	score := 0.0
	if motionChange(events) > 0.7 {
		score += 0.3
	}
	if loiterScore(events) > 0.6 {
		score += 0.2
	}
	if directionalConflict(events) > 0.5 {
		score += 0.25
	}
	return math.Min(score, 1.0)
}

// motionChange measures the largest normalized change in centroid velocity
// across consecutive events.
func motionChange(events []detection.Event) float64 {
	if len(events) < 3 {
		return 0
	}
	var maxChange float64
	px, py := events[0].BoundingBox.Centroid()
	cx, cy := events[1].BoundingBox.Centroid()
	pvx, pvy := cx-px, cy-py
	for i := 2; i < len(events); i++ {
		nx, ny := events[i].BoundingBox.Centroid()
		vx, vy := nx-cx, ny-cy
		change := math.Hypot(vx-pvx, vy-pvy)
		if change > maxChange {
			maxChange = change
		}
		cx, cy = nx, ny
		pvx, pvy = vx, vy
	}
	// 200 px-equivalent units per frame saturates the score.
	return math.Min(maxChange/200, 1.0)
}

// loiterScore is strong when the batch spans more than the loiter threshold.
func loiterScore(events []detection.Event) float64 {
	if len(events) < 5 {
		return 0
	}
	span := events[len(events)-1].Timestamp.Sub(events[0].Timestamp)
	if span > loiterThreshold {
		return 0.8
	}
	return 0.2
}

// directionalConflict is the fraction of event pairs moving in opposing
// directions.
func directionalConflict(events []detection.Event) float64 {
	if len(events) < 4 {
		return 0
	}
	type vec struct{ x, y float64 }
	var vecs []vec
	for i := 1; i < len(events); i++ {
		ax, ay := events[i-1].BoundingBox.Centroid()
		bx, by := events[i].BoundingBox.Centroid()
		vecs = append(vecs, vec{bx - ax, by - ay})
	}

	pairs, opposing := 0, 0
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			pairs++
			if vecs[i].x*vecs[j].x+vecs[i].y*vecs[j].y < 0 {
				opposing++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(opposing) / float64(pairs)
}

// spatialRisk scales a base value by the location's zone multiplier and
// adjusts for crowd density. Sparse crowds raise risk, dense crowds lower it.
func spatialRisk(ctx Context) float64 {
	base := 0.1
	location := strings.ToLower(ctx.Location)
	for _, z := range highRiskZones {
		if strings.Contains(location, z.keyword) {
			base *= z.multiplier
			break
		}
	}

	switch ctx.CrowdDensity {
	case CrowdLow:
		base += 0.1
	case CrowdHigh:
		base -= 0.1
	}
	return math.Min(math.Max(base, 0), 1.0)
}

// temporalRisk uses three fixed hour-of-day bands: night highest, early
// morning medium, daytime lowest.
func temporalRisk(ctx Context) float64 {
	hour := ctx.Timestamp.Hour()
	switch {
	case hour >= 22 || hour <= 5:
		return 0.3
	case hour >= 6 && hour <= 8:
		return 0.2
	default:
		return 0.1
	}
}

// contextualRisk adds small increments for adverse weather and traffic.
func contextualRisk(ctx Context) float64 {
	score := 0.0
	switch ctx.Weather {
	case "storm":
		score += 0.1
	case "fog":
		score += 0.05
	}
	if ctx.Traffic == "congested" {
		score += 0.05
	}
	return math.Min(score, 1.0)
}

func reasonCodes(behavioral, spatial, temporal, contextual float64) []string {
	codes := []string{}
	if behavioral > reasonThreshold {
		codes = append(codes, ReasonBehavioralAnomaly)
	}
	if spatial > reasonThreshold {
		codes = append(codes, ReasonHighRiskLocation)
	}
	if temporal > reasonThreshold {
		codes = append(codes, ReasonHighRiskTime)
	}
	if contextual > reasonThreshold {
		codes = append(codes, ReasonAdverseConditions)
	}
	return codes
}
