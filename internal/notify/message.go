package notify

import (
	"fmt"
	"strings"
	"time"
)

// Subject is the alert email subject line.
func Subject(device string) string {
	return "Environmental Alert from " + device
}

// Body renders the plain-text alert body.
func Body(a Alert) string {
	var b strings.Builder
	r := a.Reading

	b.WriteString("Environmental thresholds were exceeded.\n\n")
	fmt.Fprintf(&b, "Device:      %s\n", a.Device)
	if r.Location != "" {
		fmt.Fprintf(&b, "Location:    %s\n", r.Location)
	}
	fmt.Fprintf(&b, "Time:        %s\n", r.CapturedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Data source: %s\n\n", r.SourceLabel)

	b.WriteString("Current readings:\n")
	fmt.Fprintf(&b, "  CO2 level:   %.0f ppm\n", r.CO2PPM)
	fmt.Fprintf(&b, "  Temperature: %.1f°C\n", r.TemperatureC)
	fmt.Fprintf(&b, "  Humidity:    %.1f%%\n\n", r.HumidityPct)

	b.WriteString("Warnings:\n")
	for _, w := range a.Classification.Warnings() {
		fmt.Fprintf(&b, "  - %s\n", w)
	}
	return b.String()
}
