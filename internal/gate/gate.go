// Package gate maps a CategoryResult to a route tag. Selection is a pure
// function of the result and the policy threshold.
package gate

import (
	"math"

	"mailtriage/internal/model"
)

var routes = map[model.Category]model.RouteTag{
	model.CategoryUrgent: model.RouteUrgent,
	model.CategorySpam:   model.RouteSpam,
	model.CategoryLead:   model.RouteLead,
	model.CategoryOther:  model.RouteOther,
}

// Select picks the route for a classification.
// Low or non-finite confidence always escalates to URGENT, whatever the label.
func Select(r model.CategoryResult, p model.Policy) model.RouteTag {
	if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) || r.Confidence < p.LowConfidenceThreshold {
		return model.RouteUrgent
	}
	if tag, ok := routes[r.Category]; ok {
		return tag
	}
	return model.RouteUrgent
}
