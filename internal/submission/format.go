package submission

import (
	"strconv"
	"strings"

	"dicom-deidentifier/internal/identity"
)

// FormatPHI renders a recovered study as "YYYY.MM.DD / ACCESSION [MODALITY]",
// dropping the accession part when there is none.
func FormatPHI(s identity.Study, modality string) string {
	date := s.PHIDate
	if len(date) >= 8 {
		date = date[0:4] + "." + date[4:6] + "." + date[6:8]
	}
	if s.PHIAccession == "" {
		return date + " [" + modality + "]"
	}
	return date + " / " + s.PHIAccession + " [" + modality + "]"
}

// FixPatientAge keeps only the digits of a DICOM age string, so "045Y"
// becomes "45". Anything unparseable becomes "0".
func FixPatientAge(age string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, age)
	n, _ := strconv.Atoi(digits)
	return strconv.Itoa(n)
}
