package guard

import (
	"fmt"
	"regexp"

	"github.com/tuanzicui/openmeteo-agent/internal/a2a"
	"github.com/tuanzicui/openmeteo-agent/internal/config"
)

// ---- internal helpers ----

var taskIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidTaskID reports whether a client-supplied task id is acceptable.
func ValidTaskID(id string) bool {
	return taskIDRe.MatchString(id)
}

// ValidateCoordinates checks the geographic range of the request.
func ValidateCoordinates(in a2a.ForecastInputs) error {
	if in.Latitude < -90 || in.Latitude > 90 {
		return fmt.Errorf("latitude out of range [-90,90]: %v", in.Latitude)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return fmt.Errorf("longitude out of range [-180,180]: %v", in.Longitude)
	}
	return nil
}

// ValidateHorizon checks forecast_days and past_days bounds.
func ValidateHorizon(in a2a.ForecastInputs) error {
	if d := in.ForecastDaysOrDefault(); d < 1 || d > 16 {
		return fmt.Errorf("forecast_days out of range [1,16]: %d", d)
	}
	if d := in.PastDaysOrDefault(); d < 0 || d > 14 {
		return fmt.Errorf("past_days out of range [0,14]: %d", d)
	}
	return nil
}

// ValidateVariables checks requested variables and model against the
// definitions allowlists.
func ValidateVariables(in a2a.ForecastInputs, defs *config.Definitions) error {
	if defs == nil {
		return nil
	}
	for _, v := range in.Hourly {
		if !defs.AllowsHourly(v) {
			return fmt.Errorf("hourly variable not allowed: %s", v)
		}
	}
	for _, v := range in.Daily {
		if !defs.AllowsDaily(v) {
			return fmt.Errorf("daily variable not allowed: %s", v)
		}
	}
	if in.Model != "" && !defs.AllowsModel(in.Model) {
		return fmt.Errorf("model not allowed: %s", in.Model)
	}
	return nil
}

// ---- public API: single entry point ----

func ValidateTask(req a2a.TaskRequest, defs *config.Definitions) error {
	if req.TaskID != "" && !ValidTaskID(req.TaskID) {
		return fmt.Errorf("invalid task_id: %s", req.TaskID)
	}
	if err := ValidateCoordinates(req.Inputs); err != nil {
		return err
	}
	if err := ValidateHorizon(req.Inputs); err != nil {
		return err
	}
	if err := ValidateVariables(req.Inputs, defs); err != nil {
		return err
	}
	return nil
}
