// Package recommend ranks the responses for one vacancy by seniority.
package recommend

import (
	"fmt"
	"sort"

	"shift-coverage/internal/models"
)

// NoEligible is the justification returned when nobody qualifies.
const NoEligible = "No eligible bidders"

// Candidate is the responder chosen for a vacancy.
type Candidate struct {
	Employee models.Employee `json:"employee"`
	Response models.Response `json:"response"`
}

// Result is the best candidate, if any, with human-readable justification tokens.
type Result struct {
	Candidate *Candidate `json:"candidate"`
	Why       []string   `json:"why"`
}

type ranked struct {
	emp   models.Employee
	resp  models.Response
	order int
}

// Best returns the most senior active responder whose classification matches
// the vacancy. Rank ties go to the earlier submission when both responses carry
// a timestamp, otherwise to submission order. The result depends only on its
// arguments.
func Best(v models.Vacancy, responses []models.Response, employees []models.Employee) Result {
	directory := make(map[string]models.Employee, len(employees))
	for _, e := range employees {
		directory[e.ID] = e
	}

	var pool []ranked
	for i, r := range responses {
		if r.VacancyID != v.ID {
			continue
		}
		emp, ok := directory[r.EmployeeID]
		if !ok || !emp.Active || emp.Classification != v.Classification {
			continue
		}
		pool = append(pool, ranked{emp: emp, resp: r, order: i})
	}
	if len(pool) == 0 {
		return Result{Why: []string{NoEligible}}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.emp.SeniorityRank != b.emp.SeniorityRank {
			return a.emp.SeniorityRank < b.emp.SeniorityRank
		}
		if !a.resp.SubmittedAt.IsZero() && !b.resp.SubmittedAt.IsZero() && !a.resp.SubmittedAt.Equal(b.resp.SubmittedAt) {
			return a.resp.SubmittedAt.Before(b.resp.SubmittedAt)
		}
		return a.order < b.order
	})

	top := pool[0]
	return Result{
		Candidate: &Candidate{Employee: top.emp, Response: top.resp},
		Why: []string{
			"Bidder",
			fmt.Sprintf("Rank %d", top.emp.SeniorityRank),
			fmt.Sprintf("Class %s", top.emp.Classification),
		},
	}
}
