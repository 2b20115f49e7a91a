package document

import (
	"fmt"

	"shift-coverage/internal/models"
)

// CurrentSchema is the schema version written by this build.
const CurrentSchema = 1

// Migration upgrades a loaded document in place.
type Migration func(doc *models.Document) error

// migrations[i] upgrades schema i to i+1.
var migrations = []Migration{
	migrateV1,
}

// Migrate brings doc to CurrentSchema and then applies any host-supplied hooks
// in order.
func Migrate(doc *models.Document, hooks ...Migration) error {
	for doc.SchemaVersion < len(migrations) {
		if err := migrations[doc.SchemaVersion](doc); err != nil {
			return fmt.Errorf("migrate schema %d: %w", doc.SchemaVersion, err)
		}
		doc.SchemaVersion++
	}
	for i, hook := range hooks {
		if err := hook(doc); err != nil {
			return fmt.Errorf("migration hook %d: %w", i, err)
		}
	}
	return nil
}

func migrateV1(doc *models.Document) error {
	def := models.DefaultSettings()
	w := &doc.Settings.ResponseWindows
	if *w == (models.ResponseWindows{}) {
		*w = def.ResponseWindows
	}
	if doc.Settings.DefaultRoundMinutes == 0 {
		doc.Settings.DefaultRoundMinutes = def.DefaultRoundMinutes
		doc.Settings.DefaultAutoProgress = def.DefaultAutoProgress
	}
	doc.Settings.DefaultRoundMinutes = models.ClampRoundMinutes(doc.Settings.DefaultRoundMinutes)

	if doc.ArchivedResponses == nil {
		doc.ArchivedResponses = map[string][]models.Response{}
	}
	for i := range doc.Vacancies {
		v := &doc.Vacancies[i]
		switch v.Status {
		case "", "Filled":
			if v.AwardedTo != "" {
				v.Status = models.StatusAwarded
			} else {
				v.Status = models.StatusOpen
			}
		}
		if !v.Status.Valid() {
			return fmt.Errorf("vacancy %s: unknown status %q", v.ID, v.Status)
		}
		if v.OfferingRoundMinutes == 0 {
			v.OfferingRoundMinutes = doc.Settings.DefaultRoundMinutes
		}
		v.OfferingRoundMinutes = models.ClampRoundMinutes(v.OfferingRoundMinutes)
	}
	return nil
}
