package geometry

import (
	"fmt"
	"strings"
	"time"
)

// FormatTimestamp renders an ISO 8601 timestamp as "DD/MM/YYYY, HH:MM:SS"
// for inclusion in prompts. Unparseable input is passed through verbatim.
func FormatTimestamp(iso string) string {
	if iso == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.Format("02/01/2006, 15:04:05")
		}
	}
	return iso
}

// FormatContext renders the drawing as a prompt context block: element
// count, layer inventory, and the derivable plot dimensions.
func (d *Drawing) FormatContext() string {
	if d.IsEmpty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("User's Building Drawing:\n")
	fmt.Fprintf(&b, "- Elements: %d\n", len(d.Entities))

	order, counts := d.Layers()
	if len(order) > 0 {
		var parts []string
		for _, name := range order {
			parts = append(parts, fmt.Sprintf("%s (%d)", name, counts[name]))
		}
		fmt.Fprintf(&b, "- Layers: %s\n", strings.Join(parts, ", "))
	}

	if box, ok := d.BoundingBox(); ok {
		fmt.Fprintf(&b, "- Plot Dimensions: %.1fm x %.1fm\n", box.Width()/1000, box.Height()/1000)
	}

	if area, ok := d.PlotArea().Float(); ok {
		fmt.Fprintf(&b, "- Plot Area: %.1fm²\n", area)
	}

	if depth, ok := d.ExtensionDepth().Float(); ok {
		fmt.Fprintf(&b, "- Extension Depth: %.1fm\n", depth)
	}

	if height, ok := d.BuildingHeight().Float(); ok {
		fmt.Fprintf(&b, "- Building Height: %.1fm\n", height)
	}

	if d.HasHighway() {
		b.WriteString("- Building is near a highway\n")
	}

	if d.UpdatedAt != "" {
		fmt.Fprintf(&b, "- Last updated: %s\n", FormatTimestamp(d.UpdatedAt))
	}

	return strings.TrimRight(b.String(), "\n")
}
