// Package submission builds the re-identification report for an anonymized
// submission tree. The report is for the submitting site only: it pairs each
// anonymized patient and study directory with the original identity and
// study date so a coordinator can fill in clinical metadata. It never writes
// into the tree.
package submission

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deidentifier/internal/dicom"
	"dicom-deidentifier/internal/identity"
)

// Lookup is the read side of the identity index used by reports.
// *identity.Index implements it.
type Lookup interface {
	GetInvEntry(anonName string) (identity.PatientIndexEntry, bool)
	GetFwdEntry(originalName string) (identity.PatientIndexEntry, bool)
	GetFwdStudyEntry(originalName string) (identity.StudyIndexEntry, bool)
	MatchStudy(originalID, anonDate, anonAccession string) (identity.Study, bool)
}

// Patient is one anonymized patient directory in the report.
type Patient struct {
	Dir      string
	AnonName string
	AnonID   string
	Sex      string
	Original identity.PatientIndexEntry
	Studies  []StudyRow
}

// StudyRow is one study directory. PHI is empty when the study has not been
// correlated.
type StudyRow struct {
	Dir        string
	Modality   string
	PatientAge string
	Series     int
	PHI        string
}

// Reporter builds reports from an index.
type Reporter struct {
	Index Lookup
	Log   zerolog.Logger
}

// Build reads root, whose subdirectories are named by anonymized patient
// name, and returns the patients that are fully indexed.
func (r *Reporter) Build(root string) ([]Patient, error) {
	dirs, err := dcm.Subdirectories(root)
	if err != nil {
		return nil, err
	}
	var patients []Patient
	for _, dir := range dirs {
		original, ok := r.accept(dir)
		if !ok {
			continue
		}
		p := Patient{
			Dir:      dir,
			AnonName: filepath.Base(dir),
			Original: original,
		}
		if ds := firstDataset(dir); ds != nil {
			p.AnonID = ds.Identity().PatientID
			p.Sex = ds.GetString(tag.PatientSex)
		}
		studies, err := dcm.Subdirectories(dir)
		if err != nil {
			return nil, err
		}
		for _, sd := range studies {
			p.Studies = append(p.Studies, r.study(original.ID, sd))
		}
		patients = append(patients, p)
	}
	return patients, nil
}

// accept keeps a patient directory only when its inverse entry, the matching
// forward entry and a non-empty study entry all exist.
func (r *Reporter) accept(dir string) (identity.PatientIndexEntry, bool) {
	log := r.Log.With().Str("dir", dir).Logger()
	inv, ok := r.Index.GetInvEntry(filepath.Base(dir))
	if !ok {
		log.Warn().Msg("missing inverse patient entry")
		return identity.PatientIndexEntry{}, false
	}
	if _, ok := r.Index.GetFwdEntry(inv.Name); !ok {
		log.Warn().Msg("missing forward patient entry")
		return identity.PatientIndexEntry{}, false
	}
	if sie, ok := r.Index.GetFwdStudyEntry(inv.Name); !ok || len(sie.Studies) == 0 {
		log.Warn().Msg("missing or empty forward study entry")
		return identity.PatientIndexEntry{}, false
	}
	return inv, true
}

func (r *Reporter) study(originalID, dir string) StudyRow {
	row := StudyRow{Dir: dir}
	if series, err := dcm.Subdirectories(dir); err == nil {
		row.Series = len(series)
	}
	ds := firstDataset(dir)
	if ds == nil {
		return row
	}
	id := ds.Identity()
	row.Modality = id.Modality
	row.PatientAge = FixPatientAge(ds.GetString(tag.PatientAge))
	if s, ok := r.Index.MatchStudy(originalID, id.StudyDate, id.AccessionNumber); ok {
		row.PHI = FormatPHI(s, id.Modality)
	}
	return row
}

func firstDataset(dir string) *dcm.Dataset {
	path := dcm.FirstDicomFile(dir)
	if path == "" {
		return nil
	}
	ds, err := dcm.ReadDicomMetadataOnly(path)
	if err != nil {
		return nil
	}
	return ds
}
