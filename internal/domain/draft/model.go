package draft

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wizard step bounds. A report is captured across five sequential pages.
const (
	FirstStep = 1
	LastStep  = 5
)

// ReportDraft is one in-progress Durchgangsarztbericht. Drafts are scoped to
// an owner (the subject of the bearer token) and survive until they are
// finalized against the report backend or expire.
type ReportDraft struct {
	ID               uuid.UUID    `json:"id"`
	Owner            string       `json:"owner"`
	BackendPatientID *int64       `json:"backend_patient_id,omitempty"`
	BackendReportID  *int64       `json:"backend_report_id,omitempty"`
	CurrentStep      int          `json:"current_step"`
	CreatedAt        time.Time    `json:"created_at"`
	LastSavedAt      time.Time    `json:"last_saved_at"`
	Record           ReportRecord `json:"record"`
}

// NewReportDraft allocates an empty draft positioned on the first step.
func NewReportDraft(owner string) *ReportDraft {
	now := time.Now().UTC()
	return &ReportDraft{
		ID:          uuid.New(),
		Owner:       owner,
		CurrentStep: FirstStep,
		CreatedAt:   now,
		LastSavedAt: now,
	}
}

// ReportRecord is the flat aggregate the five wizard steps fill in. Optional
// scalars are pointers so that "not yet answered" (nil) stays distinct from
// an explicit empty or false answer. Wire names follow the German form
// fields of the printed Durchgangsarztbericht.
type ReportRecord struct {
	// Step 1: patient identity and employment
	LfdNr                *string `json:"lfd_nr,omitempty"`
	PatientID            *int64  `json:"patient_id,omitempty"`
	Vorname              *string `json:"vorname,omitempty"`
	Nachname             *string `json:"nachname,omitempty"`
	Geburtsdatum         *string `json:"geburtsdatum,omitempty"`
	Geschlecht           *string `json:"geschlecht,omitempty"`
	Telefon              *string `json:"telefon,omitempty"`
	Email                *string `json:"email,omitempty"`
	Strasse              *string `json:"strasse,omitempty"`
	PLZ                  *string `json:"plz,omitempty"`
	Ort                  *string `json:"ort,omitempty"`
	Staatsangehoerigkeit *string `json:"staatsangehoerigkeit,omitempty"`
	BeschaeftigtAls      *string `json:"beschaeftigt_als,omitempty"`
	BeschaeftigtSeit     *string `json:"beschaeftigt_seit,omitempty"`

	// Step 2: incident
	UnfallDatum            *string `json:"unfall_datum,omitempty"`
	UnfallUhrzeit          *string `json:"unfall_uhrzeit,omitempty"`
	UnfallOrt              *string `json:"unfall_ort,omitempty"`
	Unfallhergang          *string `json:"unfallhergang,omitempty"`
	ErstversorgungDurch    *string `json:"erstversorgung_durch,omitempty"`
	ErstversorgungAm       *string `json:"erstversorgung_am,omitempty"`
	BehandelnderArzt       *string `json:"behandelnder_arzt,omitempty"`
	Pflegeunfall           *bool   `json:"pflegeunfall,omitempty"`
	Pflegekasse            *string `json:"pflegekasse,omitempty"`
	AlkoholDrogenVerdacht  *bool   `json:"alkohol_drogen_verdacht,omitempty"`
	AlkoholDrogenAnzeichen *string `json:"alkohol_drogen_anzeichen,omitempty"`

	// Step 3: findings and diagnosis
	Befund               *string `json:"befund,omitempty"`
	DiagnoseICD10        *string `json:"diagnose_icd10,omitempty"`
	DiagnoseAO           *string `json:"diagnose_ao,omitempty"`
	Handverletzung       *bool   `json:"verletzung_hand,omitempty"`
	DominanteHand        *string `json:"dominante_hand,omitempty"`
	Polytrauma           *bool   `json:"polytrauma,omitempty"`
	Schweregrad          *string `json:"schweregrad,omitempty"`
	ZweifelArbeitsunfall *bool   `json:"zweifel_arbeitsunfall,omitempty"`
	ZweifelBegruendung   *string `json:"zweifel_begruendung,omitempty"`

	// Step 4: treatment and work capacity
	Behandlungsart            *string `json:"behandlungsart,omitempty"`
	KeineBehandlungGrund      *string `json:"keine_behandlung_grund,omitempty"`
	VerletzungVAV             *bool   `json:"verletzung_vav,omitempty"`
	VerletzungVAVZiffer       *string `json:"verletzung_vav_ziffer,omitempty"`
	VerletzungSAV             *bool   `json:"verletzung_sav,omitempty"`
	VerletzungSAVZiffer       *string `json:"verletzung_sav_ziffer,omitempty"`
	WeiterbehandlungDurch     *string `json:"weiterbehandlung_durch,omitempty"`
	AndererArztName           *string `json:"anderer_arzt_name,omitempty"`
	AndererArztAnschrift      *string `json:"anderer_arzt_anschrift,omitempty"`
	Arbeitsfaehig             *bool   `json:"arbeitsfaehig,omitempty"`
	ArbeitsunfaehigAb         *string `json:"arbeitsunfaehig_ab,omitempty"`
	ArbeitsfaehigAb           *string `json:"arbeitsfaehig_ab,omitempty"`
	WeitereAerzteErforderlich *bool   `json:"weitere_aerzte_erforderlich,omitempty"`
	WeitereAerzte             *string `json:"weitere_aerzte,omitempty"`
	NachschauMitgeteilt       *bool   `json:"nachschau_mitgeteilt,omitempty"`

	// Step 5: closure
	Ergaenzungsbericht        *bool   `json:"ergaenzungsbericht,omitempty"`
	ErgaenzungsberichtArt     *string `json:"ergaenzungsbericht_art,omitempty"`
	NachschauTermin           *string `json:"nachschau_termin,omitempty"`
	NachschauUhrzeit          *string `json:"nachschau_uhrzeit,omitempty"`
	Bemerkungen               *string `json:"bemerkungen,omitempty"`
	DatenschutzhinweisErteilt *bool   `json:"datenschutzhinweis_erteilt,omitempty"`
}

// RecordPatch is a partial record as sent by one wizard page. Applying it is
// a shallow merge: every top-level key present in the patch replaces the
// prior value wholesale, keys absent from the patch stay untouched, and an
// explicit null clears a field.
type RecordPatch json.RawMessage

// Apply merges the patch into a copy of rec and returns it. An empty patch
// returns an unchanged copy. The copy is deep: json.Unmarshal writes through
// pre-existing pointer fields, so a plain struct copy would still share them
// with the caller.
func (p RecordPatch) Apply(rec ReportRecord) (ReportRecord, error) {
	base, err := json.Marshal(rec)
	if err != nil {
		return rec, err
	}
	var out ReportRecord
	if err := json.Unmarshal(base, &out); err != nil {
		return rec, err
	}
	if len(p) == 0 {
		return out, nil
	}
	if err := json.Unmarshal([]byte(p), &out); err != nil {
		return rec, err
	}
	return out, nil
}

// DecodeDrafts deserializes a stored draft collection. Malformed stored data
// degrades to an empty collection rather than an error, so a corrupt store
// never blocks opening the wizard.
func DecodeDrafts(data []byte) []*ReportDraft {
	if len(data) == 0 {
		return nil
	}
	var drafts []*ReportDraft
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil
	}
	// Individual malformed entries degrade the same way.
	out := drafts[:0]
	for _, d := range drafts {
		if d != nil && d.ID != uuid.Nil {
			out = append(out, d)
		}
	}
	return out
}

// EncodeDrafts serializes the whole collection for a full-overwrite write.
func EncodeDrafts(drafts []*ReportDraft) ([]byte, error) {
	if drafts == nil {
		drafts = []*ReportDraft{}
	}
	return json.Marshal(drafts)
}
