package report

import (
	"context"

	"github.com/dabform/dabform/internal/domain/draft"
)

// PatientPayload is the patient resource the backend expects.
type PatientPayload struct {
	LfdNr                *string `json:"lfd_nr,omitempty"`
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
}

// ReportPayload is the report resource: the accumulated accident, findings,
// treatment and closure data plus the owning patient id.
type ReportPayload struct {
	PatientID int64 `json:"patient_id"`

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

	Befund               *string `json:"befund,omitempty"`
	DiagnoseICD10        *string `json:"diagnose_icd10,omitempty"`
	DiagnoseAO           *string `json:"diagnose_ao,omitempty"`
	Handverletzung       *bool   `json:"verletzung_hand,omitempty"`
	DominanteHand        *string `json:"dominante_hand,omitempty"`
	Polytrauma           *bool   `json:"polytrauma,omitempty"`
	Schweregrad          *string `json:"schweregrad,omitempty"`
	ZweifelArbeitsunfall *bool   `json:"zweifel_arbeitsunfall,omitempty"`
	ZweifelBegruendung   *string `json:"zweifel_begruendung,omitempty"`

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

	Ergaenzungsbericht        *bool   `json:"ergaenzungsbericht,omitempty"`
	ErgaenzungsberichtArt     *string `json:"ergaenzungsbericht_art,omitempty"`
	NachschauTermin           *string `json:"nachschau_termin,omitempty"`
	NachschauUhrzeit          *string `json:"nachschau_uhrzeit,omitempty"`
	Bemerkungen               *string `json:"bemerkungen,omitempty"`
	DatenschutzhinweisErteilt *bool   `json:"datenschutzhinweis_erteilt,omitempty"`
}

// Mapper translates an accumulated wizard record into the backend's
// patient and report resources and drives the submission sequence.
type Mapper struct {
	client *Client
}

var _ draft.Submitter = (*Mapper)(nil)

func NewMapper(client *Client) *Mapper {
	return &Mapper{client: client}
}

// EnsurePatient creates the patient on first submission and updates it on
// retries, returning the backend patient id either way. A record linked to
// an existing backend patient is updated under that id instead of creating
// a duplicate; an id persisted by an earlier attempt takes precedence.
func (m *Mapper) EnsurePatient(ctx context.Context, rec *draft.ReportRecord, existing *int64) (int64, error) {
	if existing == nil {
		existing = rec.PatientID
	}
	payload := mapPatient(rec)
	if existing != nil {
		if err := m.client.UpdatePatient(ctx, *existing, payload); err != nil {
			return 0, err
		}
		return *existing, nil
	}
	return m.client.CreatePatient(ctx, payload)
}

// EnsureReport creates or updates the report resource belonging to the
// given patient.
func (m *Mapper) EnsureReport(ctx context.Context, rec *draft.ReportRecord, patientID int64, existing *int64) (int64, error) {
	payload := mapReport(rec, patientID)
	if existing != nil {
		if err := m.client.UpdateReport(ctx, *existing, payload); err != nil {
			return 0, err
		}
		return *existing, nil
	}
	return m.client.CreateReport(ctx, payload)
}

func (m *Mapper) FinalizeReport(ctx context.Context, reportID int64) error {
	return m.client.FinalizeReport(ctx, reportID)
}

func (m *Mapper) GenerateDocument(ctx context.Context, reportID int64) error {
	return m.client.GenerateDocument(ctx, reportID)
}

func mapPatient(rec *draft.ReportRecord) *PatientPayload {
	return &PatientPayload{
		LfdNr:                rec.LfdNr,
		Vorname:              rec.Vorname,
		Nachname:             rec.Nachname,
		Geburtsdatum:         rec.Geburtsdatum,
		Geschlecht:           rec.Geschlecht,
		Telefon:              rec.Telefon,
		Email:                rec.Email,
		Strasse:              rec.Strasse,
		PLZ:                  rec.PLZ,
		Ort:                  rec.Ort,
		Staatsangehoerigkeit: rec.Staatsangehoerigkeit,
		BeschaeftigtAls:      rec.BeschaeftigtAls,
		BeschaeftigtSeit:     rec.BeschaeftigtSeit,
	}
}

func mapReport(rec *draft.ReportRecord, patientID int64) *ReportPayload {
	return &ReportPayload{
		PatientID: patientID,

		UnfallDatum:            rec.UnfallDatum,
		UnfallUhrzeit:          rec.UnfallUhrzeit,
		UnfallOrt:              rec.UnfallOrt,
		Unfallhergang:          rec.Unfallhergang,
		ErstversorgungDurch:    rec.ErstversorgungDurch,
		ErstversorgungAm:       rec.ErstversorgungAm,
		BehandelnderArzt:       rec.BehandelnderArzt,
		Pflegeunfall:           rec.Pflegeunfall,
		Pflegekasse:            rec.Pflegekasse,
		AlkoholDrogenVerdacht:  rec.AlkoholDrogenVerdacht,
		AlkoholDrogenAnzeichen: rec.AlkoholDrogenAnzeichen,

		Befund:               rec.Befund,
		DiagnoseICD10:        rec.DiagnoseICD10,
		DiagnoseAO:           rec.DiagnoseAO,
		Handverletzung:       rec.Handverletzung,
		DominanteHand:        rec.DominanteHand,
		Polytrauma:           rec.Polytrauma,
		Schweregrad:          rec.Schweregrad,
		ZweifelArbeitsunfall: rec.ZweifelArbeitsunfall,
		ZweifelBegruendung:   rec.ZweifelBegruendung,

		Behandlungsart:            rec.Behandlungsart,
		KeineBehandlungGrund:      rec.KeineBehandlungGrund,
		VerletzungVAV:             rec.VerletzungVAV,
		VerletzungVAVZiffer:       rec.VerletzungVAVZiffer,
		VerletzungSAV:             rec.VerletzungSAV,
		VerletzungSAVZiffer:       rec.VerletzungSAVZiffer,
		WeiterbehandlungDurch:     rec.WeiterbehandlungDurch,
		AndererArztName:           rec.AndererArztName,
		AndererArztAnschrift:      rec.AndererArztAnschrift,
		Arbeitsfaehig:             rec.Arbeitsfaehig,
		ArbeitsunfaehigAb:         rec.ArbeitsunfaehigAb,
		ArbeitsfaehigAb:           rec.ArbeitsfaehigAb,
		WeitereAerzteErforderlich: rec.WeitereAerzteErforderlich,
		WeitereAerzte:             rec.WeitereAerzte,
		NachschauMitgeteilt:       rec.NachschauMitgeteilt,

		Ergaenzungsbericht:        rec.Ergaenzungsbericht,
		ErgaenzungsberichtArt:     rec.ErgaenzungsberichtArt,
		NachschauTermin:           rec.NachschauTermin,
		NachschauUhrzeit:          rec.NachschauUhrzeit,
		Bemerkungen:               rec.Bemerkungen,
		DatenschutzhinweisErteilt: rec.DatenschutzhinweisErteilt,
	}
}
