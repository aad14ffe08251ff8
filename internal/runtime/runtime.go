package runtime

import (
	"github.com/tuanzicui/openmeteo-agent/internal/meteo"
)

type Runtime struct {
	DefinitionsLoaded bool
	Upstream          meteo.Pinger
}
