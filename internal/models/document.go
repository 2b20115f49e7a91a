package models

// ResponseWindows holds the response-window minutes per urgency bucket.
type ResponseWindows struct {
	LessThan2h  int `json:"lt2h" yaml:"lt2h"`
	From2To4h   int `json:"h2to4" yaml:"h2to4"`
	From4To24h  int `json:"h4to24" yaml:"h4to24"`
	From24To72h int `json:"h24to72" yaml:"h24to72"`
	Over72h     int `json:"gt72" yaml:"gt72"`
}

// DefaultResponseWindows are used when a document carries no settings.
func DefaultResponseWindows() ResponseWindows {
	return ResponseWindows{
		LessThan2h:  7,
		From2To4h:   15,
		From4To24h:  30,
		From24To72h: 120,
		Over72h:     1440,
	}
}

// Settings are the document-level defaults.
type Settings struct {
	ResponseWindows     ResponseWindows `json:"response_windows" yaml:"response_windows"`
	DefaultRoundMinutes int             `json:"default_round_minutes" yaml:"default_round_minutes"`
	DefaultAutoProgress bool            `json:"default_auto_progress" yaml:"default_auto_progress"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		ResponseWindows:     DefaultResponseWindows(),
		DefaultRoundMinutes: DefaultRoundMinutes,
		DefaultAutoProgress: true,
	}
}

// Document is the persisted state handed to the host key-value store verbatim.
type Document struct {
	SchemaVersion     int                   `json:"schema_version"`
	Employees         []Employee            `json:"employees"`
	Vacancies         []Vacancy             `json:"vacancies"`
	Responses         []Response            `json:"responses"`
	ArchivedResponses map[string][]Response `json:"archived_responses"`
	Settings          Settings              `json:"settings"`
	AuditLog          []AuditLogEntry       `json:"audit_log"`
}

// FindVacancy returns the index of the vacancy with id, or -1.
func (d *Document) FindVacancy(id string) int {
	for i := range d.Vacancies {
		if d.Vacancies[i].ID == id {
			return i
		}
	}
	return -1
}

// FindEmployee returns the employee with id.
func (d *Document) FindEmployee(id string) (Employee, bool) {
	for _, e := range d.Employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}
