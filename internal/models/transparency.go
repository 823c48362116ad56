package models

import "time"

// TransparencySummary is the cached public overview of district activity.
type TransparencySummary struct {
	ApprovedProjects  int                     `json:"approved_projects"`
	FundsAllocated    float64                 `json:"funds_allocated"`
	FundsUtilized     float64                 `json:"funds_utilized"`
	ApprovedSchemes   int                     `json:"approved_schemes"`
	ApprovedEvents    int                     `json:"approved_events"`
	ComplaintsByState map[ComplaintStatus]int `json:"complaints_by_status"`
	Attendance        AttendancePercentage    `json:"attendance"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// ProjectTotals aggregates approved project funding.
type ProjectTotals struct {
	Count          int     `db:"count"`
	FundsAllocated float64 `db:"funds_allocated"`
	FundsUtilized  float64 `db:"funds_utilized"`
}

// StatusCount is one row of a GROUP BY status query.
type StatusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}
