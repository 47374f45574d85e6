package dicom

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SetString replaces the value of an existing tag. Absent tags are left
// absent.
func (d *Dataset) SetString(t tag.Tag, value string) error {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		return nil
	}
	v, err := dicom.NewValue([]string{value})
	if err != nil {
		return fmt.Errorf("could not create value: %w", err)
	}
	elem.Value = v
	elem.ValueLength = uint32(len(value))
	return nil
}

// PutString sets a tag's value, adding the element in tag order when the
// object does not have it.
func (d *Dataset) PutString(t tag.Tag, value string) error {
	if _, err := d.Data.FindElementByTag(t); err == nil {
		return d.SetString(t, value)
	}
	elem, err := dicom.NewElement(t, []string{value})
	if err != nil {
		return fmt.Errorf("could not create element %v: %w", t, err)
	}
	at := len(d.Data.Elements)
	for i, e := range d.Data.Elements {
		if tagLess(t, e.Tag) {
			at = i
			break
		}
	}
	d.Data.Elements = append(d.Data.Elements, nil)
	copy(d.Data.Elements[at+1:], d.Data.Elements[at:])
	d.Data.Elements[at] = elem
	return nil
}

// RemoveTag deletes a top-level element. Sequences cannot be emptied with
// SetString, so identifying sequences are removed whole.
func (d *Dataset) RemoveTag(t tag.Tag) {
	kept := d.Data.Elements[:0]
	for _, e := range d.Data.Elements {
		if e.Tag != t {
			kept = append(kept, e)
		}
	}
	d.Data.Elements = kept
}

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}

// ClearTag empties a tag's value.
func (d *Dataset) ClearTag(t tag.Tag) {
	_ = d.SetString(t, "")
}

// TruncateDate reduces a date to YYYYMM01.
func (d *Dataset) TruncateDate(t tag.Tag) {
	value := d.GetString(t)
	switch {
	case len(value) >= 6:
		_ = d.SetString(t, value[:6]+"01")
	case value != "":
		d.ClearTag(t)
	}
}

// Save writes the dataset to outputPath, creating parent directories.
func (d *Dataset) Save(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}

	// Real-world files often bend the VR rules; write them as they are.
	if err := dicom.Write(file, d.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	); err != nil {
		file.Close()
		return fmt.Errorf("could not write DICOM: %w", err)
	}
	return file.Close()
}
