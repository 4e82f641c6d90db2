package domain

// PriorityCategory buckets a priority score.
type PriorityCategory string

const (
	PriorityCritical PriorityCategory = "Critical"
	PriorityHigh     PriorityCategory = "High"
	PriorityMedium   PriorityCategory = "Medium"
	PriorityLow      PriorityCategory = "Low"
)

// PriorityQuadrant places an item on the effort/impact matrix.
type PriorityQuadrant string

const (
	QuadrantQuickWins     PriorityQuadrant = "Quick Wins"
	QuadrantMajorProjects PriorityQuadrant = "Major Projects"
	QuadrantFillIns       PriorityQuadrant = "Fill-ins"
	QuadrantTimeWasters   PriorityQuadrant = "Time Wasters"
)

// PriorityScore is the result of scoring one (effort, impact) pair.
type PriorityScore struct {
	Effort   float64          `json:"effort"`
	Impact   float64          `json:"impact"`
	Score    float64          `json:"score"`
	Category PriorityCategory `json:"category"`
	Quadrant PriorityQuadrant `json:"quadrant"`
}

// CalculatePriority maps (effort, impact), both on a 1..10 scale, to a
// score, category and quadrant. Pure: same inputs always yield the same
// output. Inputs outside the scale are clamped.
func CalculatePriority(effort, impact float64) PriorityScore {
	effort = clampScale(effort)
	impact = clampScale(impact)

	score := impact / effort

	var category PriorityCategory
	switch {
	case score >= 2.5:
		category = PriorityCritical
	case score >= 1.5:
		category = PriorityHigh
	case score >= 0.7:
		category = PriorityMedium
	default:
		category = PriorityLow
	}

	var quadrant PriorityQuadrant
	switch {
	case effort <= 5 && impact >= 5:
		quadrant = QuadrantQuickWins
	case effort > 5 && impact >= 5:
		quadrant = QuadrantMajorProjects
	case effort <= 5 && impact < 5:
		quadrant = QuadrantFillIns
	default:
		quadrant = QuadrantTimeWasters
	}

	return PriorityScore{
		Effort:   effort,
		Impact:   impact,
		Score:    score,
		Category: category,
		Quadrant: quadrant,
	}
}

func clampScale(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
