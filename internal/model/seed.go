package model

// SeedTeam returns the initial roster.
func SeedTeam() []TeamMember {
	return []TeamMember{
		{ID: 1, Name: "John Doe", Role: "Project Manager", Avatar: "JD"},
		{ID: 2, Name: "Alice Smith", Role: "Event Coordinator", Avatar: "AS"},
		{ID: 3, Name: "Robert Johnson", Role: "Marketing Lead", Avatar: "RJ"},
		{ID: 4, Name: "Emma Wilson", Role: "Operations", Avatar: "EW"},
	}
}

// SeedEvents returns the events shown before anything is persisted.
// They carry no date and therefore group under the current day.
func SeedEvents() []Event {
	return []Event{
		{ID: "1", Time: "09:00 AM", Title: "Team Stand-up Meeting", Status: StatusOngoing},
		{ID: "2", Time: "11:00 AM", Title: "Client Presentation", Status: StatusUpcoming},
		{ID: "3", Time: "02:00 PM", Title: "Project Review", Status: StatusUpcoming},
	}
}

// BaselineStats is the starting point for the simulated stats.
func BaselineStats() Stats {
	return Stats{
		UpcomingEvents:   12,
		ResponseRate:     75,
		AvailableMembers: 18,
		TotalMembers:     20,
		TaskProgress:     64,
		RemainingTasks:   36,
	}
}
