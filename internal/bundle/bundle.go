// Package bundle groups same-origin vacancies on contiguous dates into one
// award unit.
package bundle

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"shift-coverage/internal/models"
)

// NewID mints bundle identifiers. Tests replace it for determinism.
var NewID = func() string { return uuid.New().String() }

const day = 24 * time.Hour

type dated struct {
	v    *models.Vacancy
	date time.Time
}

// Form tags every run of consecutive calendar dates (two or more vacancies)
// with one shared bundle id and the one-person award mode. An id already
// carried by a run member is reused, so re-running after an edit is
// idempotent; two runs never share an id. Single-day runs lose stale tags.
// Awarded vacancies are immutable and are left out.
func Form(vacancies []*models.Vacancy) (int, error) {
	return FormReserving(vacancies, nil)
}

// FormReserving is Form with a set of ids that belong to other origins. A
// run never keeps or adopts a reserved id, so one id cannot span absences.
func FormReserving(vacancies []*models.Vacancy, reserved map[string]bool) (int, error) {
	items := make([]dated, 0, len(vacancies))
	for _, v := range vacancies {
		if v.Status == models.StatusAwarded {
			continue
		}
		d, err := v.Date()
		if err != nil {
			return 0, err
		}
		items = append(items, dated{v: v, date: d})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].date.Before(items[j].date)
	})

	used := make(map[string]bool, len(reserved))
	for id := range reserved {
		used[id] = true
	}
	bundles := 0
	for start := 0; start < len(items); {
		end := start + 1
		for end < len(items) && items[end].date.Sub(items[end-1].date) <= day {
			end++
		}
		run := items[start:end]
		if len(run) >= 2 {
			id := pickID(run, used)
			used[id] = true
			for _, it := range run {
				it.v.BundleID = id
				it.v.BundleMode = models.BundleOnePerson
			}
			bundles++
		} else {
			run[0].v.BundleID = ""
			run[0].v.BundleMode = ""
		}
		start = end
	}
	return bundles, nil
}

func pickID(run []dated, used map[string]bool) string {
	for _, it := range run {
		if id := it.v.BundleID; id != "" && !used[id] {
			return id
		}
	}
	return NewID()
}

// FormAll runs Form for every origin reference present in vacancies and
// returns the number of bundles. Vacancies without an origin are untouched.
func FormAll(vacancies []models.Vacancy) (int, error) {
	groups := make(map[string][]*models.Vacancy)
	var order []string
	for i := range vacancies {
		ref := vacancies[i].OriginRef
		if ref == "" {
			continue
		}
		if _, ok := groups[ref]; !ok {
			order = append(order, ref)
		}
		groups[ref] = append(groups[ref], &vacancies[i])
	}
	total := 0
	for _, ref := range order {
		n, err := FormReserving(groups[ref], ReservedOutside(vacancies, ref))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ReservedOutside collects the bundle ids carried by vacancies whose origin
// is not originRef.
func ReservedOutside(vacancies []models.Vacancy, originRef string) map[string]bool {
	out := make(map[string]bool)
	for i := range vacancies {
		if vacancies[i].OriginRef != originRef && vacancies[i].BundleID != "" {
			out[vacancies[i].BundleID] = true
		}
	}
	return out
}

// Siblings returns the indexes of every vacancy sharing bundleID.
func Siblings(vacancies []models.Vacancy, bundleID string) []int {
	if bundleID == "" {
		return nil
	}
	var out []int
	for i := range vacancies {
		if vacancies[i].BundleID == bundleID {
			out = append(out, i)
		}
	}
	return out
}
