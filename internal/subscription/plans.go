// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package subscription

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/models"
)

// ErrUnknownPlan is returned for a plan ID that is not configured.
var ErrUnknownPlan = errors.New("unknown subscription plan")

// Plans is the configured plan table.
type Plans map[string]models.Plan

// DefaultPlans is used when the configuration lists none.
func DefaultPlans() Plans {
	return Plans{
		"monthly":   {ID: "monthly", Days: 30, Price: 500},
		"quarterly": {ID: "quarterly", Days: 90, Price: 1350},
		"yearly":    {ID: "yearly", Days: 365, Price: 5000},
	}
}

// PlansFromConfig builds the table from configuration, skipping plans with no days.
func PlansFromConfig(cfg map[string]config.PlanConfig) Plans {
	if len(cfg) == 0 {
		return DefaultPlans()
	}
	plans := make(Plans, len(cfg))
	for id, pc := range cfg {
		if pc.Days <= 0 {
			continue
		}
		plans[id] = models.Plan{ID: id, Days: pc.Days, Price: pc.Price}
	}
	return plans
}

// Lookup returns the plan with id.
func (p Plans) Lookup(id string) (models.Plan, error) {
	plan, ok := p[id]
	if !ok {
		return models.Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return plan, nil
}

// List returns plans ordered by length.
func (p Plans) List() []models.Plan {
	out := make([]models.Plan, 0, len(p))
	for _, plan := range p {
		out = append(out, plan)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Days != out[j].Days {
			return out[i].Days < out[j].Days
		}
		return out[i].ID < out[j].ID
	})
	return out
}
