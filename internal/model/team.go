package model

// TeamMember is static roster data.
type TeamMember struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

// Stats is the aggregate dashboard snapshot.
type Stats struct {
	UpcomingEvents   int `json:"upcomingEvents"`
	ResponseRate     int `json:"responseRate"`
	AvailableMembers int `json:"availableMembers"`
	TotalMembers     int `json:"totalMembers"`
	TaskProgress     int `json:"taskProgress"`
	RemainingTasks   int `json:"remainingTasks"`
}
