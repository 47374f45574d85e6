package dicom

import (
	"fmt"
	"os"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset wraps a parsed DICOM dataset together with its source path.
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// ReadDicom parses a whole DICOM file, pixel data included.
func ReadDicom(path string) (*Dataset, error) {
	return read(path)
}

// ReadDicomMetadataOnly parses a DICOM file without its pixel data.
func ReadDicomMetadataOnly(path string) (*Dataset, error) {
	return read(path, dicom.SkipPixelData())
}

func read(path string, opts ...dicom.ParseOption) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}
	return &Dataset{Data: ds, FilePath: path}, nil
}

// GetString returns the first string value of a tag, or "" when the tag is
// absent or empty.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}

	switch v := elem.Value.GetValue().(type) {
	case nil:
		return ""
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	case []int:
		if len(v) > 0 {
			return fmt.Sprint(v[0])
		}
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Identity is the set of identifying fields the index and the output layout
// need from one object.
type Identity struct {
	PatientName     string
	PatientID       string
	StudyDate       string
	StudyTime       string
	AccessionNumber string
	Modality        string
	SeriesNumber    string
	InstanceNumber  string
}

// Identity extracts the identifying fields. StudyTime loses any fractional
// seconds.
func (d *Dataset) Identity() Identity {
	studyTime := d.GetString(tag.StudyTime)
	if k := strings.Index(studyTime, "."); k >= 0 {
		studyTime = studyTime[:k]
	}
	return Identity{
		PatientName:     d.GetString(tag.PatientName),
		PatientID:       d.GetString(tag.PatientID),
		StudyDate:       d.GetString(tag.StudyDate),
		StudyTime:       studyTime,
		AccessionNumber: d.GetString(tag.AccessionNumber),
		Modality:        d.GetString(tag.Modality),
		SeriesNumber:    d.GetString(tag.SeriesNumber),
		InstanceNumber:  d.GetString(tag.InstanceNumber),
	}
}

const (
	srClassPrefix = "1.2.840.10008.5.1.4.1.1.88."
	scClass       = "1.2.840.10008.5.1.4.1.1.7"
)

// IsSR reports whether the object is a Structured Report.
func (d *Dataset) IsSR() bool {
	return strings.HasPrefix(d.GetString(tag.SOPClassUID), srClassPrefix)
}

// IsSecondaryCapture reports whether the object is one of the Secondary
// Capture image classes.
func (d *Dataset) IsSecondaryCapture() bool {
	uid := d.GetString(tag.SOPClassUID)
	return uid == scClass || strings.HasPrefix(uid, scClass+".")
}

// IsImage reports whether the object carries pixel data.
func (d *Dataset) IsImage() bool {
	_, err := d.Data.FindElementByTag(tag.PixelData)
	if err == nil {
		return true
	}
	return d.GetString(tag.Rows) != ""
}
