package draft

import (
	"net/mail"
	"regexp"
	"strconv"
	"time"
)

// Errors maps a field path to a human-readable message. An empty map means
// the validated fields are acceptable.
type Errors map[string]string

// Rule is one entry of the declarative validation table. Rules with a nil
// When are unconditional. A conditional rule only fires while its
// controlling predicate holds, which by construction requires the
// controlling field itself to be set and well-formed.
type Rule struct {
	Step    int
	Field   string
	When    func(r *ReportRecord) bool
	Check   func(r *ReportRecord) bool
	Message string
}

// Validate applies every rule owned by the given step to the record. It is
// pure: the record is never mutated, all violated fields are reported and
// validation itself never fails.
func Validate(r *ReportRecord, step int) Errors {
	errs := Errors{}
	for _, rule := range rules {
		if rule.Step != step {
			continue
		}
		if rule.When != nil && !rule.When(r) {
			continue
		}
		if !rule.Check(r) {
			// First message per field wins so unconditional violations
			// shadow follow-up format complaints.
			if _, seen := errs[rule.Field]; !seen {
				errs[rule.Field] = rule.Message
			}
		}
	}
	return errs
}

// ValidateAll runs every step's rules, for a pre-submission overview.
func ValidateAll(r *ReportRecord) Errors {
	errs := Errors{}
	for step := FirstStep; step <= LastStep; step++ {
		for field, msg := range Validate(r, step) {
			if _, seen := errs[field]; !seen {
				errs[field] = msg
			}
		}
	}
	return errs
}

// -- Predicates --

var (
	timeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	plzRe  = regexp.MustCompile(`^[0-9]{5}$`)
)

func hasText(s *string) bool { return s != nil && *s != "" }

func isTrue(b *bool) bool   { return b != nil && *b }
func isFalse(b *bool) bool  { return b != nil && !*b }
func answered(b *bool) bool { return b != nil }

// validDate accepts strict calendar dates only; "2025-02-30" is rejected.
func validDate(s *string) bool {
	if !hasText(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", *s)
	return err == nil
}

func validTime(s *string) bool {
	return hasText(s) && timeRe.MatchString(*s)
}

func validPLZ(s *string) bool {
	return hasText(s) && plzRe.MatchString(*s)
}

func validEmail(s *string) bool {
	if !hasText(s) {
		return false
	}
	_, err := mail.ParseAddress(*s)
	return err == nil
}

func oneOf(s *string, values ...string) bool {
	if !hasText(s) {
		return false
	}
	for _, v := range values {
		if *s == v {
			return true
		}
	}
	return false
}

// validSeverity accepts a numeric injury severity score within [0,75].
func validSeverity(s *string) bool {
	if !hasText(s) {
		return false
	}
	n, err := strconv.Atoi(*s)
	return err == nil && n >= 0 && n <= 75
}

// -- Messages --

const (
	msgRequired = "Pflichtfeld"
	msgDate     = "Ungültiges Datum (JJJJ-MM-TT)"
	msgTime     = "Ungültige Uhrzeit (HH:MM)"
	msgPLZ      = "PLZ muss aus genau 5 Ziffern bestehen"
	msgEmail    = "Ungültige E-Mail-Adresse"
)

// rules is the single source of truth for field validation across all five
// steps. Unconditional rules precede the conditional ones of the same step
// so that controlling-field errors take precedence in the reported mapping.
var rules = []Rule{
	// Step 1: patient identity and employment
	{Step: 1, Field: "lfd_nr", Check: func(r *ReportRecord) bool { return hasText(r.LfdNr) }, Message: msgRequired},
	{Step: 1, Field: "vorname", Check: func(r *ReportRecord) bool { return hasText(r.Vorname) }, Message: msgRequired},
	{Step: 1, Field: "nachname", Check: func(r *ReportRecord) bool { return hasText(r.Nachname) }, Message: msgRequired},
	{Step: 1, Field: "geburtsdatum", Check: func(r *ReportRecord) bool { return hasText(r.Geburtsdatum) }, Message: msgRequired},
	{Step: 1, Field: "geburtsdatum", When: func(r *ReportRecord) bool { return hasText(r.Geburtsdatum) },
		Check: func(r *ReportRecord) bool { return validDate(r.Geburtsdatum) }, Message: msgDate},
	{Step: 1, Field: "geschlecht", Check: func(r *ReportRecord) bool { return oneOf(r.Geschlecht, "m", "w", "d") },
		Message: "Geschlecht muss m, w oder d sein"},
	{Step: 1, Field: "telefon", Check: func(r *ReportRecord) bool { return hasText(r.Telefon) }, Message: msgRequired},
	{Step: 1, Field: "email", When: func(r *ReportRecord) bool { return hasText(r.Email) },
		Check: func(r *ReportRecord) bool { return validEmail(r.Email) }, Message: msgEmail},
	{Step: 1, Field: "strasse", Check: func(r *ReportRecord) bool { return hasText(r.Strasse) }, Message: msgRequired},
	{Step: 1, Field: "plz", Check: func(r *ReportRecord) bool { return hasText(r.PLZ) }, Message: msgRequired},
	{Step: 1, Field: "plz", When: func(r *ReportRecord) bool { return hasText(r.PLZ) },
		Check: func(r *ReportRecord) bool { return validPLZ(r.PLZ) }, Message: msgPLZ},
	{Step: 1, Field: "ort", Check: func(r *ReportRecord) bool { return hasText(r.Ort) }, Message: msgRequired},
	{Step: 1, Field: "staatsangehoerigkeit", Check: func(r *ReportRecord) bool { return hasText(r.Staatsangehoerigkeit) }, Message: msgRequired},
	{Step: 1, Field: "beschaeftigt_als", Check: func(r *ReportRecord) bool { return hasText(r.BeschaeftigtAls) }, Message: msgRequired},
	{Step: 1, Field: "beschaeftigt_seit", Check: func(r *ReportRecord) bool { return hasText(r.BeschaeftigtSeit) }, Message: msgRequired},
	{Step: 1, Field: "beschaeftigt_seit", When: func(r *ReportRecord) bool { return hasText(r.BeschaeftigtSeit) },
		Check: func(r *ReportRecord) bool { return validDate(r.BeschaeftigtSeit) }, Message: msgDate},

	// Step 2: incident
	{Step: 2, Field: "unfall_datum", Check: func(r *ReportRecord) bool { return hasText(r.UnfallDatum) }, Message: msgRequired},
	{Step: 2, Field: "unfall_datum", When: func(r *ReportRecord) bool { return hasText(r.UnfallDatum) },
		Check: func(r *ReportRecord) bool { return validDate(r.UnfallDatum) }, Message: msgDate},
	{Step: 2, Field: "unfall_uhrzeit", Check: func(r *ReportRecord) bool { return hasText(r.UnfallUhrzeit) }, Message: msgRequired},
	{Step: 2, Field: "unfall_uhrzeit", When: func(r *ReportRecord) bool { return hasText(r.UnfallUhrzeit) },
		Check: func(r *ReportRecord) bool { return validTime(r.UnfallUhrzeit) }, Message: msgTime},
	{Step: 2, Field: "unfall_ort", Check: func(r *ReportRecord) bool { return hasText(r.UnfallOrt) }, Message: msgRequired},
	{Step: 2, Field: "unfallhergang", Check: func(r *ReportRecord) bool { return hasText(r.Unfallhergang) }, Message: msgRequired},
	{Step: 2, Field: "behandelnder_arzt", Check: func(r *ReportRecord) bool { return hasText(r.BehandelnderArzt) }, Message: msgRequired},
	{Step: 2, Field: "erstversorgung_am", When: func(r *ReportRecord) bool { return hasText(r.ErstversorgungAm) },
		Check: func(r *ReportRecord) bool { return validDate(r.ErstversorgungAm) }, Message: msgDate},
	{Step: 2, Field: "pflegekasse", When: func(r *ReportRecord) bool { return isTrue(r.Pflegeunfall) },
		Check:   func(r *ReportRecord) bool { return hasText(r.Pflegekasse) },
		Message: "Bei einem Pflegeunfall ist die Pflegekasse anzugeben"},
	{Step: 2, Field: "alkohol_drogen_anzeichen", When: func(r *ReportRecord) bool { return isTrue(r.AlkoholDrogenVerdacht) },
		Check:   func(r *ReportRecord) bool { return hasText(r.AlkoholDrogenAnzeichen) },
		Message: "Bei Verdacht auf Alkohol- oder Drogeneinfluss sind die Anzeichen zu beschreiben"},

	// Step 3: findings and diagnosis
	{Step: 3, Field: "befund", Check: func(r *ReportRecord) bool { return hasText(r.Befund) }, Message: msgRequired},
	{Step: 3, Field: "diagnose_icd10", Check: func(r *ReportRecord) bool { return hasText(r.DiagnoseICD10) }, Message: msgRequired},
	{Step: 3, Field: "verletzung_hand", Check: func(r *ReportRecord) bool { return answered(r.Handverletzung) }, Message: msgRequired},
	{Step: 3, Field: "dominante_hand", When: func(r *ReportRecord) bool { return isTrue(r.Handverletzung) },
		Check:   func(r *ReportRecord) bool { return oneOf(r.DominanteHand, "links", "rechts") },
		Message: "Bei einer Handverletzung ist die dominante Hand (links/rechts) anzugeben"},
	{Step: 3, Field: "polytrauma", Check: func(r *ReportRecord) bool { return answered(r.Polytrauma) }, Message: msgRequired},
	{Step: 3, Field: "schweregrad", When: func(r *ReportRecord) bool { return isTrue(r.Polytrauma) },
		Check:   func(r *ReportRecord) bool { return validSeverity(r.Schweregrad) },
		Message: "Bei Polytrauma ist ein Schweregrad zwischen 0 und 75 anzugeben"},
	{Step: 3, Field: "zweifel_begruendung", When: func(r *ReportRecord) bool { return isTrue(r.ZweifelArbeitsunfall) },
		Check:   func(r *ReportRecord) bool { return hasText(r.ZweifelBegruendung) },
		Message: "Zweifel am Arbeitsunfall sind zu begründen"},

	// Step 4: treatment and work capacity
	{Step: 4, Field: "behandlungsart", Check: func(r *ReportRecord) bool { return oneOf(r.Behandlungsart, "allgemein", "besondere", "keine") },
		Message: "Behandlungsart muss allgemein, besondere oder keine sein"},
	{Step: 4, Field: "keine_behandlung_grund", When: func(r *ReportRecord) bool { return oneOf(r.Behandlungsart, "keine") },
		Check:   func(r *ReportRecord) bool { return hasText(r.KeineBehandlungGrund) },
		Message: "Wird keine Behandlung durchgeführt, ist der Grund anzugeben"},
	{Step: 4, Field: "verletzung_vav_ziffer", When: func(r *ReportRecord) bool { return isTrue(r.VerletzungVAV) },
		Check:   func(r *ReportRecord) bool { return hasText(r.VerletzungVAVZiffer) },
		Message: "Bei einer VAV-Verletzung ist die Ziffer anzugeben"},
	{Step: 4, Field: "verletzung_sav_ziffer", When: func(r *ReportRecord) bool { return isTrue(r.VerletzungSAV) },
		Check:   func(r *ReportRecord) bool { return hasText(r.VerletzungSAVZiffer) },
		Message: "Bei einer SAV-Verletzung ist die Ziffer anzugeben"},
	{Step: 4, Field: "weiterbehandlung_durch", Check: func(r *ReportRecord) bool {
		return oneOf(r.WeiterbehandlungDurch, "selbst", "anderer_arzt", "krankenhaus", "keine")
	}, Message: "Weiterbehandlung muss selbst, anderer_arzt, krankenhaus oder keine sein"},
	{Step: 4, Field: "anderer_arzt_name", When: func(r *ReportRecord) bool { return oneOf(r.WeiterbehandlungDurch, "anderer_arzt") },
		Check:   func(r *ReportRecord) bool { return hasText(r.AndererArztName) },
		Message: "Name des weiterbehandelnden Arztes ist anzugeben"},
	{Step: 4, Field: "anderer_arzt_anschrift", When: func(r *ReportRecord) bool { return oneOf(r.WeiterbehandlungDurch, "anderer_arzt") },
		Check:   func(r *ReportRecord) bool { return hasText(r.AndererArztAnschrift) },
		Message: "Anschrift des weiterbehandelnden Arztes ist anzugeben"},
	{Step: 4, Field: "arbeitsfaehig", Check: func(r *ReportRecord) bool { return answered(r.Arbeitsfaehig) }, Message: msgRequired},
	{Step: 4, Field: "arbeitsunfaehig_ab", When: func(r *ReportRecord) bool { return isFalse(r.Arbeitsfaehig) },
		Check:   func(r *ReportRecord) bool { return validDate(r.ArbeitsunfaehigAb) },
		Message: "Beginn der Arbeitsunfähigkeit ist anzugeben"},
	{Step: 4, Field: "arbeitsfaehig_ab", When: func(r *ReportRecord) bool { return isFalse(r.Arbeitsfaehig) },
		Check:   func(r *ReportRecord) bool { return validDate(r.ArbeitsfaehigAb) },
		Message: "Voraussichtliche Wiederherstellung der Arbeitsfähigkeit ist anzugeben"},
	{Step: 4, Field: "weitere_aerzte", When: func(r *ReportRecord) bool { return isTrue(r.WeitereAerzteErforderlich) },
		Check:   func(r *ReportRecord) bool { return hasText(r.WeitereAerzte) },
		Message: "Weitere hinzuzuziehende Ärzte sind zu benennen"},
	// Hard gate: step 4 cannot be left until the follow-up requirement was
	// communicated to the patient.
	{Step: 4, Field: "nachschau_mitgeteilt", Check: func(r *ReportRecord) bool { return isTrue(r.NachschauMitgeteilt) },
		Message: "Die Mitteilung über die Nachschau muss bestätigt werden"},

	// Step 5: closure
	{Step: 5, Field: "ergaenzungsbericht_art", When: func(r *ReportRecord) bool { return isTrue(r.Ergaenzungsbericht) },
		Check:   func(r *ReportRecord) bool { return hasText(r.ErgaenzungsberichtArt) },
		Message: "Art des Ergänzungsberichts ist anzugeben"},
	{Step: 5, Field: "nachschau_termin", When: func(r *ReportRecord) bool { return hasText(r.NachschauTermin) },
		Check: func(r *ReportRecord) bool { return validDate(r.NachschauTermin) }, Message: msgDate},
	{Step: 5, Field: "nachschau_uhrzeit", When: func(r *ReportRecord) bool { return hasText(r.NachschauUhrzeit) },
		Check: func(r *ReportRecord) bool { return validTime(r.NachschauUhrzeit) }, Message: msgTime},
	// Hard gate: no submission without the data protection notice.
	{Step: 5, Field: "datenschutzhinweis_erteilt", Check: func(r *ReportRecord) bool { return isTrue(r.DatenschutzhinweisErteilt) },
		Message: "Der Datenschutzhinweis muss erteilt worden sein"},
}
