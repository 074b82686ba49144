package engine

import (
	"fmt"
	"sort"
	"strings"
)

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName maps a zero-based day index to a display name.
func DayName(day int) string {
	if day >= 0 && day < len(dayNames) {
		return dayNames[day]
	}
	return fmt.Sprintf("Day %d", day+1)
}

// RenderText formats an export as day-named indented text, one section per
// entity. Presentation only.
func RenderText(export *ScheduleExport) string {
	var b strings.Builder
	renderSection(&b, "Teachers", export.Teachers)
	renderSection(&b, "Student sets", export.StudentSets)
	renderSection(&b, "Rooms", export.Rooms)
	return b.String()
}

func renderSection(b *strings.Builder, title string, buckets map[string]map[int][]ScheduleEntry) {
	if len(buckets) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString("\n")

	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Fprintf(b, "  %s\n", id)
		days := make([]int, 0, len(buckets[id]))
		for day := range buckets[id] {
			days = append(days, day)
		}
		sort.Ints(days)
		for _, day := range days {
			fmt.Fprintf(b, "    %s\n", DayName(day))
			for _, entry := range buckets[id][day] {
				fmt.Fprintf(b, "      %d-%d %s", entry.StartHour, entry.EndHour, entry.ActivityName)
				if entry.RoomName != "" {
					fmt.Fprintf(b, " (%s)", entry.RoomName)
				}
				b.WriteString("\n")
			}
		}
	}
}
