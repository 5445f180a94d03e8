package jurisdiction

import (
	"context"
	"strings"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/repository"
)

// StaticLookup resolves against a fixed state list. Used in tests and local
// development when no database is configured.
type StaticLookup struct {
	states []models.State
}

// NewStaticLookup creates a lookup over states.
func NewStaticLookup(states []models.State) *StaticLookup {
	return &StaticLookup{states: states}
}

// NewUSStatesLookup creates a lookup over the fifty states plus DC, keyed as
// "st_" followed by the lower-cased postal code.
func NewUSStatesLookup() *StaticLookup {
	return NewStaticLookup(USStates())
}

func (l *StaticLookup) ResolveJurisdictionByCodeOrName(_ context.Context, input string) (string, bool, error) {
	id, ok := repository.MatchState(l.states, input)
	return id, ok, nil
}

// States returns the lookup's state list.
func (l *StaticLookup) States() []models.State {
	return l.states
}

var usStates = [][2]string{
	{"AL", "Alabama"}, {"AK", "Alaska"}, {"AZ", "Arizona"}, {"AR", "Arkansas"},
	{"CA", "California"}, {"CO", "Colorado"}, {"CT", "Connecticut"}, {"DE", "Delaware"},
	{"DC", "District of Columbia"}, {"FL", "Florida"}, {"GA", "Georgia"}, {"HI", "Hawaii"},
	{"ID", "Idaho"}, {"IL", "Illinois"}, {"IN", "Indiana"}, {"IA", "Iowa"},
	{"KS", "Kansas"}, {"KY", "Kentucky"}, {"LA", "Louisiana"}, {"ME", "Maine"},
	{"MD", "Maryland"}, {"MA", "Massachusetts"}, {"MI", "Michigan"}, {"MN", "Minnesota"},
	{"MS", "Mississippi"}, {"MO", "Missouri"}, {"MT", "Montana"}, {"NE", "Nebraska"},
	{"NV", "Nevada"}, {"NH", "New Hampshire"}, {"NJ", "New Jersey"}, {"NM", "New Mexico"},
	{"NY", "New York"}, {"NC", "North Carolina"}, {"ND", "North Dakota"}, {"OH", "Ohio"},
	{"OK", "Oklahoma"}, {"OR", "Oregon"}, {"PA", "Pennsylvania"}, {"RI", "Rhode Island"},
	{"SC", "South Carolina"}, {"SD", "South Dakota"}, {"TN", "Tennessee"}, {"TX", "Texas"},
	{"UT", "Utah"}, {"VT", "Vermont"}, {"VA", "Virginia"}, {"WA", "Washington"},
	{"WV", "West Virginia"}, {"WI", "Wisconsin"}, {"WY", "Wyoming"},
}

// USStates returns a fresh copy of the built-in state table.
func USStates() []models.State {
	out := make([]models.State, len(usStates))
	for i, s := range usStates {
		out[i] = models.State{ID: "st_" + strings.ToLower(s[0]), Code: s[0], Name: s[1]}
	}
	return out
}
