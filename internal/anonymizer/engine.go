package anonymizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deidentifier/internal/dicom"
	"dicom-deidentifier/internal/idtable"
)

// Integer categories used by the metadata engine.
const (
	CategoryPatient   = "ptid"
	CategoryAccession = "accession"
)

// ErrAllocation is returned when a surrogate integer could not be assigned.
// The object is then treated as not anonymized.
var ErrAllocation = errors.New("surrogate integer unavailable")

// IntegerSource hands out integer surrogates. *idtable.Table implements it.
type IntegerSource interface {
	GetInteger(category, text string, width int) string
}

// Engine anonymizes one object from src into dst.
type Engine interface {
	Anonymize(ctx context.Context, src, dst string, ids IntegerSource) error
}

// MetadataEngine replaces patient and accession identifiers with integer
// surrogates, clears PII tags and truncates dates. Pixel data is untouched.
type MetadataEngine struct {
	// PatientPrefix is prepended to the patient surrogate to form PatientName.
	PatientPrefix string
	// PatientWidth is the zero-padded width of the patient surrogate.
	PatientWidth int
	// AccessionWidth is the zero-padded width of the accession surrogate.
	AccessionWidth int
}

// NewMetadataEngine returns an engine producing ANON-000001 style names.
func NewMetadataEngine() *MetadataEngine {
	return &MetadataEngine{PatientPrefix: "ANON-", PatientWidth: 6, AccessionWidth: 8}
}

// Anonymize implements Engine.
func (e *MetadataEngine) Anonymize(ctx context.Context, src, dst string, ids IntegerSource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ds, err := dcm.ReadDicom(src)
	if err != nil {
		return err
	}
	orig := ds.Identity()

	// Objects without an id fall back to the name so they still group.
	key := orig.PatientID
	if key == "" {
		key = orig.PatientName
	}
	ptid, err := surrogate(ids, CategoryPatient, key, e.PatientWidth)
	if err != nil {
		return err
	}
	if err := ds.PutString(tag.PatientID, ptid); err != nil {
		return err
	}
	if err := ds.PutString(tag.PatientName, e.PatientPrefix+ptid); err != nil {
		return err
	}

	if orig.AccessionNumber != "" {
		acc, err := surrogate(ids, CategoryAccession, orig.AccessionNumber, e.AccessionWidth)
		if err != nil {
			return err
		}
		if err := ds.SetString(tag.AccessionNumber, acc); err != nil {
			return err
		}
	}

	for _, t := range PIITagsToClear {
		ds.ClearTag(t)
	}
	for _, t := range PIISequencesToRemove {
		ds.RemoveTag(t)
	}
	for _, t := range DateTagsToTruncate {
		ds.TruncateDate(t)
	}
	return ds.Save(dst)
}

func surrogate(ids IntegerSource, category, text string, width int) (string, error) {
	v := ids.GetInteger(category, text, width)
	if v == idtable.ErrorValue {
		return "", fmt.Errorf("%w: category %s", ErrAllocation, category)
	}
	return v, nil
}
