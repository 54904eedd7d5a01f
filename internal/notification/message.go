package notification

import (
	"fmt"
	"strings"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/plan"
)

type pushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

var units = map[model.LimitKey]string{
	model.LimitDays:    "days",
	model.LimitHours:   "h",
	model.LimitKm:      "km",
	model.LimitClimb:   "m climb",
	model.LimitDescend: "m descend",
	model.LimitRides:   "rides",
	model.LimitKJ:      "kJ",
}

// Title summarises the alert in one line.
func (a Alert) Title() string {
	switch {
	case a.Counts.Alert > 0 && a.Counts.Warn > 0:
		return fmt.Sprintf("%d services overdue, %d due soon", a.Counts.Alert, a.Counts.Warn)
	case a.Counts.Alert > 0:
		return fmt.Sprintf("%d services overdue", a.Counts.Alert)
	default:
		return fmt.Sprintf("%d services due soon", a.Counts.Warn)
	}
}

// Body lists one line per report.
func (a Alert) Body() string {
	lines := make([]string, 0, len(a.Reports))
	for _, r := range a.Reports {
		lines = append(lines, reportLine(r))
	}
	return strings.Join(lines, "\n")
}

func reportLine(r plan.Report) string {
	line := fmt.Sprintf("%s (%s)", r.Plan.Name, r.Part.Name)
	var left []string
	for _, k := range model.LimitKeys {
		if v := r.Due.Get(k); v != nil {
			left = append(left, fmt.Sprintf("%d %s", *v, units[k]))
		}
	}
	if len(left) > 0 {
		line += ": " + strings.Join(left, ", ") + " left"
	}
	return line
}
