package models

import "slices"

// PlanID идентификатор тарифа.
type PlanID string

const (
	PlanMonthly    PlanID = "monthly"
	PlanQuarterly  PlanID = "quarterly"
	PlanSemiannual PlanID = "semiannual"
	PlanYearly     PlanID = "yearly"
)

// Функции, доступные по подписке.
const (
	FeatureUnlimitedPortfolios = "unlimited_portfolios"
	FeatureUnlimitedDemands    = "unlimited_demands"
	FeaturePoolAccess          = "pool_access"
	FeatureContactOwner        = "contact_owner"
	FeaturePrioritySupport     = "priority_support"
)

// Plan справочная запись тарифа. Duration в сутках, Discount в процентах.
type Plan struct {
	ID       PlanID   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Currency string   `json:"currency"`
	Duration int      `json:"duration"`
	Features []string `json:"features"`
	Discount int      `json:"discount"`
}

// HasFeature проверяет, входит ли функция в тариф.
func (p Plan) HasFeature(feature string) bool {
	return slices.Contains(p.Features, feature)
}

// Все тарифы пока дают одинаковый набор функций и отличаются только ценой и сроком.
var planFeatures = []string{
	FeatureUnlimitedPortfolios,
	FeatureUnlimitedDemands,
	FeaturePoolAccess,
	FeatureContactOwner,
	FeaturePrioritySupport,
}

var catalog = []Plan{
	{ID: PlanMonthly, Name: "Aylık", Price: 299, Currency: "TRY", Duration: 30, Discount: 0},
	{ID: PlanQuarterly, Name: "3 Aylık", Price: 799, Currency: "TRY", Duration: 90, Discount: 11},
	{ID: PlanSemiannual, Name: "6 Aylık", Price: 1499, Currency: "TRY", Duration: 180, Discount: 16},
	{ID: PlanYearly, Name: "Yıllık", Price: 2799, Currency: "TRY", Duration: 365, Discount: 22},
}

// Plans возвращает копию каталога в порядке возрастания срока.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	for i, p := range catalog {
		p.Features = slices.Clone(planFeatures)
		out[i] = p
	}
	return out
}

// LookupPlan ищет тариф по идентификатору.
func LookupPlan(id PlanID) (Plan, bool) {
	for _, p := range catalog {
		if p.ID == id {
			p.Features = slices.Clone(planFeatures)
			return p, true
		}
	}
	return Plan{}, false
}

// DefaultPlan тариф, который показывается пользователю без подписки.
func DefaultPlan() Plan {
	p, _ := LookupPlan(PlanMonthly)
	return p
}
