// Package dicomtest writes small DICOM files for tests.
package dicomtest

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

// WriteFile writes an explicit VR little endian object at path holding the
// given string-valued fields plus any extra elements, in tag order.
func WriteFile(t testing.TB, path string, fields map[tag.Tag]string, extra ...*dicom.Element) {
	t.Helper()

	elems := []*dicom.Element{
		Element(t, tag.FileMetaInformationVersion, []byte{0x00, 0x01}),
		Element(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		Element(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.1"}),
		Element(t, tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
	}
	for tg, v := range fields {
		elems = append(elems, Element(t, tg, []string{v}))
	}
	elems = append(elems, extra...)
	sort.Slice(elems, func(i, j int) bool {
		a, b := elems[i].Tag, elems[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := dicom.Write(f, dicom.Dataset{Elements: elems}, dicom.SkipVRVerification()); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Element builds one element or fails the test.
func Element(t testing.TB, tg tag.Tag, data any) *dicom.Element {
	t.Helper()
	e, err := dicom.NewElement(tg, data)
	if err != nil {
		t.Fatalf("element %v: %v", tg, err)
	}
	return e
}

// Sequence builds a sequence element with one item holding items.
func Sequence(t testing.TB, tg tag.Tag, items ...*dicom.Element) *dicom.Element {
	t.Helper()
	e := Element(t, tg, [][]*dicom.Element{items})
	e.ValueLength = tag.VLUndefinedLength
	return e
}
