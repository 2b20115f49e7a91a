package recommend

import (
	"reflect"
	"testing"
	"time"

	"shift-coverage/internal/models"
)

func TestBestPicksMostSeniorEligible(t *testing.T) {
	v := models.Vacancy{ID: "v1", Classification: models.ClassRN}
	employees := []models.Employee{
		{ID: "e2", SeniorityRank: 2, Classification: models.ClassRN, Active: true},
		{ID: "e1", SeniorityRank: 1, Classification: models.ClassRN, Active: true},
		{ID: "lpn", SeniorityRank: 1, Classification: models.ClassLPN, Active: true},
		{ID: "gone", SeniorityRank: 1, Classification: models.ClassRN, Active: false},
	}
	responses := []models.Response{
		{ID: "r1", VacancyID: "v1", EmployeeID: "e2"},
		{ID: "r2", VacancyID: "v1", EmployeeID: "e1"},
		{ID: "r3", VacancyID: "v1", EmployeeID: "lpn"},
		{ID: "r4", VacancyID: "v1", EmployeeID: "gone"},
	}

	got := Best(v, responses, employees)
	if got.Candidate == nil || got.Candidate.Employee.ID != "e1" {
		t.Fatalf("expected e1, got %+v", got.Candidate)
	}
	want := []string{"Bidder", "Rank 1", "Class RN"}
	if !reflect.DeepEqual(got.Why, want) {
		t.Fatalf("expected %v, got %v", want, got.Why)
	}
}

func TestBestNoEligible(t *testing.T) {
	v := models.Vacancy{ID: "v1", Classification: models.ClassRN}
	responses := []models.Response{
		{VacancyID: "v1", EmployeeID: "lpn"},
		{VacancyID: "other", EmployeeID: "rn"},
		{VacancyID: "v1", EmployeeID: "unknown"},
	}
	employees := []models.Employee{
		{ID: "lpn", SeniorityRank: 1, Classification: models.ClassLPN, Active: true},
		{ID: "rn", SeniorityRank: 1, Classification: models.ClassRN, Active: true},
	}

	got := Best(v, responses, employees)
	if got.Candidate != nil {
		t.Fatalf("expected no candidate, got %+v", got.Candidate)
	}
	if !reflect.DeepEqual(got.Why, []string{"No eligible bidders"}) {
		t.Fatalf("unexpected justification %v", got.Why)
	}
}

func TestBestTieBreaksOnTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	v := models.Vacancy{ID: "v1", Classification: models.ClassLPN}
	employees := []models.Employee{
		{ID: "a", SeniorityRank: 3, Classification: models.ClassLPN, Active: true},
		{ID: "b", SeniorityRank: 3, Classification: models.ClassLPN, Active: true},
	}
	responses := []models.Response{
		{VacancyID: "v1", EmployeeID: "a", SubmittedAt: base.Add(time.Minute)},
		{VacancyID: "v1", EmployeeID: "b", SubmittedAt: base},
	}
	if got := Best(v, responses, employees); got.Candidate.Employee.ID != "b" {
		t.Fatalf("expected earlier submission b, got %s", got.Candidate.Employee.ID)
	}
}

func TestBestTieBreaksOnOrderWithoutTimestamps(t *testing.T) {
	v := models.Vacancy{ID: "v1", Classification: models.ClassLPN}
	employees := []models.Employee{
		{ID: "a", SeniorityRank: 3, Classification: models.ClassLPN, Active: true},
		{ID: "b", SeniorityRank: 3, Classification: models.ClassLPN, Active: true},
	}
	responses := []models.Response{
		{VacancyID: "v1", EmployeeID: "b", SubmittedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)},
		{VacancyID: "v1", EmployeeID: "a"},
	}
	for i := 0; i < 10; i++ {
		if got := Best(v, responses, employees); got.Candidate.Employee.ID != "b" {
			t.Fatalf("expected submission order to win, got %s", got.Candidate.Employee.ID)
		}
	}
}

func TestBestReflectsCurrentInputs(t *testing.T) {
	v := models.Vacancy{ID: "v1", Classification: models.ClassRCA}
	employees := []models.Employee{
		{ID: "junior", SeniorityRank: 9, Classification: models.ClassRCA, Active: true},
		{ID: "senior", SeniorityRank: 1, Classification: models.ClassRCA, Active: true},
	}
	responses := []models.Response{{VacancyID: "v1", EmployeeID: "junior"}}
	if got := Best(v, responses, employees); got.Candidate.Employee.ID != "junior" {
		t.Fatalf("expected junior, got %s", got.Candidate.Employee.ID)
	}
	responses = append(responses, models.Response{VacancyID: "v1", EmployeeID: "senior"})
	if got := Best(v, responses, employees); got.Candidate.Employee.ID != "senior" {
		t.Fatalf("expected senior after new response, got %s", got.Candidate.Employee.ID)
	}
}
