package bot

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"eventflow/internal/model"
	"eventflow/internal/service"
	"eventflow/internal/timefmt"
)

const (
	iconUpcoming  = "🕒"
	iconOngoing   = "▶️"
	iconCompleted = "✅"
	iconWarning   = "⚠️"

	shortIDLen = 8
)

var errUsage = errors.New("usage")

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusOngoing:
		return iconOngoing
	case model.StatusCompleted:
		return iconCompleted
	default:
		return iconUpcoming
	}
}

func shortID(id model.EventID) string {
	runes := []rune(string(id))
	if len(runes) <= shortIDLen {
		return string(runes)
	}
	return string(runes[:shortIDLen])
}

// timeRange renders "09:00 AM to 10:00 AM" from the start time and duration.
func timeRange(e model.Event) string {
	start, err := timefmt.ParseClock(e.Time)
	if err != nil {
		return escape(e.Time)
	}
	return timefmt.FromMinutes(start) + " to " + timefmt.FromMinutes(start+e.Duration())
}

func formatEvent(e model.Event) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b> <code>%s</code>\n", statusIcon(e.Status), escape(normalizeTitle(e.Title)), shortID(e.ID)))
	b.WriteString(fmt.Sprintf("   ⏰ %s · %s\n", timeRange(e), e.Status))
	if e.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(e.Description)))
	}
	return b.String()
}

func groupTitle(date, today string) string {
	label := timefmt.FormatDisplayDate(date)
	if date == today {
		label += " · today"
	}
	return label
}

func renderEventGroups(groups []service.DateGroup, today string) string {
	if len(groups) == 0 {
		return "No events yet. Add one with /add."
	}
	var b strings.Builder
	b.WriteString("📋 <b>Events</b>\n\n")
	for _, g := range groups {
		b.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n", escape(groupTitle(g.Date, today))))
		for _, e := range g.Events {
			b.WriteString(formatEvent(e))
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// renderWeek walks each day's 15-minute slots and lists the events that
// occupy them, one row per event at the first slot it covers.
func renderWeek(days []service.WeekDay, events []model.Event, today string) string {
	slots := service.TimeSlots()

	var b strings.Builder
	b.WriteString("📅 <b>This week</b>\n\n")
	for _, day := range days {
		marker := ""
		if day.IsToday {
			marker = " ◀"
		}
		b.WriteString(fmt.Sprintf("<b>%s %s</b>%s\n", day.DayName, day.MonthDay, marker))

		seen := make(map[model.EventID]bool)
		busy := 0
		for _, slot := range slots {
			e, ok := service.EventAt(events, day.Date, today, slot.Minutes)
			if !ok || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			busy++
			b.WriteString(fmt.Sprintf("   %s %s %s (%d slots)\n", statusIcon(e.Status), timeRange(e), escape(shortTitle(e.Title, 32)), service.SlotSpan(e)))
		}
		if busy == 0 {
			b.WriteString("   free\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func renderStats(s model.Stats, degraded bool) string {
	var b strings.Builder
	b.WriteString("📊 <b>Dashboard</b>\n")
	b.WriteString(fmt.Sprintf("• Upcoming events: <b>%d</b>\n", s.UpcomingEvents))
	b.WriteString(fmt.Sprintf("• Response rate: <b>%d%%</b>\n", s.ResponseRate))
	b.WriteString(fmt.Sprintf("• Team available: <b>%d/%d</b>\n", s.AvailableMembers, s.TotalMembers))
	b.WriteString(fmt.Sprintf("• Task progress: <b>%d%%</b>\n", s.TaskProgress))
	b.WriteString(fmt.Sprintf("• Remaining tasks: <b>%d</b>", s.RemainingTasks))
	if degraded {
		b.WriteString("\n\n" + iconWarning + " Changes are not being saved right now.")
	}
	return b.String()
}

func renderTeam(team []model.TeamMember) string {
	if len(team) == 0 {
		return "No team members."
	}
	var b strings.Builder
	b.WriteString("👥 <b>Team</b>\n")
	for _, m := range team {
		b.WriteString(fmt.Sprintf("• <b>%s</b> %s · %s\n", escape(m.Avatar), escape(m.Name), escape(m.Role)))
	}
	return strings.TrimSpace(b.String())
}

// renderDigest lists what is left of today's agenda.
func renderDigest(events []model.Event, now time.Time) string {
	today := timefmt.ISO(now)
	var pending []model.Event
	for _, e := range events {
		if e.Status == model.StatusCompleted {
			continue
		}
		if e.Date == "" || e.Date == today {
			pending = append(pending, e)
		}
	}

	var b strings.Builder
	b.WriteString("☀️ <b>Today's agenda</b>\n")
	b.WriteString(fmt.Sprintf("🗓 %s\n\n", timefmt.FormatDisplayDate(today)))
	if len(pending) == 0 {
		b.WriteString("Nothing scheduled. Enjoy the day.")
		return b.String()
	}
	groups := service.GroupAndSort(pending, today)
	for _, g := range groups {
		for _, e := range g.Events {
			b.WriteString(formatEvent(e))
		}
	}
	return strings.TrimSpace(b.String())
}

func renderValidation(err error) string {
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Sprintf("Could not save the event: %s", escape(err.Error()))
	}
	keys := make([]string, 0, len(verr.Fields))
	for k := range verr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(iconWarning + " <b>Please fix:</b>\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("• %s: %s\n", k, escape(verr.Fields[k])))
	}
	return strings.TrimSpace(b.String())
}

func renderStatusChange(e model.Event) string {
	switch e.Status {
	case model.StatusOngoing:
		return fmt.Sprintf("%s <b>%s</b> has started (%s).", iconOngoing, escape(normalizeTitle(e.Title)), timeRange(e))
	case model.StatusCompleted:
		return fmt.Sprintf("%s <b>%s</b> is over.", iconCompleted, escape(normalizeTitle(e.Title)))
	}
	return ""
}

// parseAddArgs reads "Title | YYYY-MM-DD | HH:MM [| minutes [| description]]".
func parseAddArgs(args string) (service.EventDraft, error) {
	parts := strings.Split(args, "|")
	if len(parts) < 3 {
		return service.EventDraft{}, errUsage
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	draft := service.EventDraft{
		Title: parts[0],
		Date:  parts[1],
		Time:  parts[2],
	}
	if len(parts) > 3 && parts[3] != "" {
		minutes, err := strconv.Atoi(parts[3])
		if err != nil || minutes <= 0 {
			return service.EventDraft{}, fmt.Errorf("duration must be a positive number of minutes")
		}
		draft.DurationMinutes = minutes
	}
	if len(parts) > 4 {
		draft.Description = strings.Join(parts[4:], "|")
	}
	return draft, nil
}

// parseMoveArgs reads "<id> YYYY-MM-DD HH:MM". The time may carry an AM/PM
// suffix.
func parseMoveArgs(args string) (id, date, clock string, err error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "", "", "", errUsage
	}
	return fields[0], fields[1], strings.Join(fields[2:], " "), nil
}

// advanced returns the events of next whose status moved forward compared
// to prev.
func advanced(prev map[model.EventID]model.Status, next []model.Event) []model.Event {
	var out []model.Event
	for _, e := range next {
		old, ok := prev[e.ID]
		if ok && e.Status.Rank() > old.Rank() {
			out = append(out, e)
		}
	}
	return out
}

func statusIndex(events []model.Event) map[model.EventID]model.Status {
	idx := make(map[model.EventID]model.Status, len(events))
	for _, e := range events {
		idx[e.ID] = e.Status
	}
	return idx
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
