package models

import "time"

// Employee is a directory entry. Rank 1 is the most senior.
type Employee struct {
	ID               string         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	Classification   Classification `json:"classification" yaml:"classification"`
	EmploymentStatus string         `json:"employment_status,omitempty" yaml:"employment_status,omitempty"`
	SeniorityRank    int            `json:"seniority_rank" yaml:"seniority_rank"`
	Active           bool           `json:"active" yaml:"active"`
}

// Response is one worker's recorded interest in a vacancy. Classification and
// EmploymentStatus are captured at submission and never follow later edits.
type Response struct {
	ID               string         `json:"id"`
	VacancyID        string         `json:"vacancy_id"`
	EmployeeID       string         `json:"employee_id"`
	Classification   Classification `json:"classification"`
	EmploymentStatus string         `json:"employment_status,omitempty"`
	SubmittedAt      time.Time      `json:"submitted_at"`
	Note             string         `json:"note,omitempty"`
}

// Absence is a scheduled employee's gap, possibly spanning several days.
type Absence struct {
	ID             string         `json:"id"`
	EmployeeID     string         `json:"employee_id,omitempty"`
	Classification Classification `json:"classification"`
	Unit           string         `json:"unit,omitempty"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	ShiftStart     string         `json:"shift_start"`
	ShiftEnd       string         `json:"shift_end"`
	KnownAt        time.Time      `json:"known_at"`
}
