// Package scenario provides the built-in verification scenarios and loads,
// validates, and resolves user-supplied ones.
package scenario

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// Names of the built-in scenarios.
const (
	MapsAnimation = "maps-animation"
	MapsRender    = "maps-render"
)

// DefaultArtifact is where built-in scenarios write their screenshot unless configured otherwise.
const DefaultArtifact = "verification/verification.png"

var builtins = map[string]func() *schemas.Scenario{
	MapsAnimation: mapsAnimation,
	MapsRender:    mapsRender,
}

// Builtin returns a fresh copy of the named built-in scenario.
func Builtin(name string) (*schemas.Scenario, error) {
	build, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown built-in scenario %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return build(), nil
}

// BuiltinNames lists the built-in scenarios in alphabetical order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func loc(l schemas.Locator) *schemas.Locator { return &l }

// mapsAnimation searches the maps page for California, opens the first event and
// waits for its true color animation to render.
func mapsAnimation() *schemas.Scenario {
	firstEventTrigger := schemas.ByRole("button", "").In(schemas.ByCSS("[data-radix-accordion-item]").FirstMatch())

	return &schemas.Scenario{
		Name:        MapsAnimation,
		Description: "Verifies the animation engine renders a true color video for a searched location.",
		Path:        "/maps",
		Steps: []schemas.Step{
			{Kind: schemas.StepLog, Message: "Searching for 'California'..."},
			{
				Name:   "Type the search location",
				Kind:   schemas.StepFill,
				Target: loc(schemas.ByPlaceholder("Search for a location...")),
				Value:  "California",
			},
			{Name: "Submit the search", Kind: schemas.StepClick, Target: loc(schemas.ByRole("button", "Search"))},
			{Kind: schemas.StepLog, Message: "Waiting for events to load..."},
			{
				Name:    "Wait for search results",
				Kind:    schemas.StepAssertVisible,
				Target:  loc(schemas.ByText("Events in California")),
				Timeout: 20 * time.Second,
			},
			{Kind: schemas.StepLog, Message: "Opening the first available event..."},
			{Name: "Wait for the first event", Kind: schemas.StepAssertVisible, Target: loc(firstEventTrigger), Timeout: 10 * time.Second},
			{Name: "Open the first event", Kind: schemas.StepClick, Target: loc(firstEventTrigger)},
			{Kind: schemas.StepLog, Message: "Requesting 'True Color' animation..."},
			{Name: "Request the true color animation", Kind: schemas.StepClick, Target: loc(schemas.ByRole("button", "View True Color"))},
			{Kind: schemas.StepLog, Message: "Waiting for animation dialog to appear..."},
			{
				Name:    "Wait for the animation dialog",
				Kind:    schemas.StepAssertVisible,
				Target:  loc(schemas.ByRole("heading", "Generating Animation")),
				Timeout: 10 * time.Second,
			},
			{Kind: schemas.StepLog, Message: "Waiting for the animation video to be rendered..."},
			{
				Name:    "Wait for the animation video",
				Kind:    schemas.StepAssertVisible,
				Target:  loc(schemas.ByTag("video")),
				Timeout: 60 * time.Second,
			},
		},
	}
}

// mapsRender waits for the leaflet map and its GeoJSON layer to render.
func mapsRender() *schemas.Scenario {
	return &schemas.Scenario{
		Name:              MapsRender,
		Description:       "Verifies the maps page renders the map container and country outlines.",
		Path:              "/maps",
		NavigationTimeout: 60 * time.Second,
		Steps: []schemas.Step{
			{
				Name:    "Wait for the map container",
				Kind:    schemas.StepAssertVisible,
				Target:  loc(schemas.ByCSS(".leaflet-container")),
				Timeout: 30 * time.Second,
			},
			{
				Name:    "Wait for the GeoJSON layer",
				Kind:    schemas.StepAssertVisible,
				Target:  loc(schemas.ByCSS("path.leaflet-interactive").FirstMatch()),
				Timeout: 30 * time.Second,
			},
			{Name: "Let map tiles settle", Kind: schemas.StepPause, Duration: 2 * time.Second},
		},
	}
}
