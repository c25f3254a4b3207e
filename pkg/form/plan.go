package form

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// Unlimited marks a limit without a ceiling.
const Unlimited = -1

// PlanLimits holds the per-plan ceilings.
type PlanLimits struct {
	Forms     int `json:"forms"`
	Fields    int `json:"fields"`
	Responses int `json:"responses"`
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:    {Forms: 1, Fields: 5, Responses: 40},
	PlanBasic:   {Forms: 5, Fields: 15, Responses: 300},
	PlanPremium: {Forms: Unlimited, Fields: 15, Responses: 1000},
}

// LimitsFor returns the limits of the plan. Unknown plans get the free limits.
func LimitsFor(p Plan) PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// AllowsForms reports whether a user with current forms may create another.
func (l PlanLimits) AllowsForms(current int) bool {
	return l.Forms == Unlimited || current < l.Forms
}
