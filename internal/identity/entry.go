package identity

// PatientIndexEntry is one side of a patient correspondence. In the forward
// index Key is the original name and Name/ID are the anonymized identity; in
// the inverse index Key is the anonymized name and Name/ID are the original.
type PatientIndexEntry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

func (e PatientIndexEntry) String() string {
	return e.Name + "[" + e.ID + "]"
}

// Study correlates an original study date/accession with the anonymized one.
type Study struct {
	PHIDate       string `json:"phiDate"`
	PHIAccession  string `json:"phiAccession"`
	AnonDate      string `json:"anonDate"`
	AnonAccession string `json:"anonAccession"`
}

// StudyIndexEntry holds the studies recorded for one original patient id.
type StudyIndexEntry struct {
	Key     string  `json:"key"`
	Studies []Study `json:"studies"`
}

// Add appends s unless an identical study is already present. It reports
// whether the entry changed.
func (e *StudyIndexEntry) Add(s Study) bool {
	for _, existing := range e.Studies {
		if existing == s {
			return false
		}
	}
	e.Studies = append(e.Studies, s)
	return true
}

// Match returns the study whose anonymized date and accession both match.
func (e StudyIndexEntry) Match(anonDate, anonAccession string) (Study, bool) {
	for _, s := range e.Studies {
		if s.AnonAccession == anonAccession && s.AnonDate == anonDate {
			return s, true
		}
	}
	return Study{}, false
}
