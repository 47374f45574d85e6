// Package anonymizer runs an anonymization engine over DICOM files, places
// the results in the submission layout and records the identity
// correspondences in the index.
package anonymizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	dcm "dicom-deidentifier/internal/dicom"
)

// Recorder receives the correspondences found while processing.
// *identity.Index implements it.
type Recorder interface {
	AddPatient(originalName, originalID, anonName, anonID string) error
	AddStudy(originalID, phiDate, phiAccession, anonDate, anonAccession string) error
}

// Stats holds processing statistics.
type Stats struct {
	Success  int
	Failed   int
	Skipped  int
	Patients int
}

// ProgressCallback is called once per file with its outcome.
type ProgressCallback func(current, total int, filename, status string)

// Workflow anonymizes files one at a time.
type Workflow struct {
	Engine    Engine
	IDs       IntegerSource
	Index     Recorder
	OutputDir string
	Log       zerolog.Logger

	// ImagesOnly rejects objects without pixel data.
	ImagesOnly bool

	// RejectSR and RejectSC reject Structured Reports and Secondary Captures.
	RejectSR bool
	RejectSC bool
}

// ProcessFile anonymizes one file and returns where the result was placed.
// The index is updated only after the anonymized file is in place.
func (w *Workflow) ProcessFile(ctx context.Context, path string) (string, error) {
	ds, err := dcm.ReadDicomMetadataOnly(path)
	if err != nil {
		return "", err
	}
	switch {
	case w.ImagesOnly && !ds.IsImage():
		return "", errNotImage
	case w.RejectSR && ds.IsSR():
		return "", errStructuredReport
	case w.RejectSC && ds.IsSecondaryCapture():
		return "", errSecondaryCapture
	}
	orig := ds.Identity()
	if orig.PatientName == "" {
		return "", ErrNoPatientName
	}

	if err := os.MkdirAll(w.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("could not create output directory: %w", err)
	}
	temp, err := os.CreateTemp(w.OutputDir, "TEMP-*.dcm")
	if err != nil {
		return "", fmt.Errorf("could not create temp file: %w", err)
	}
	tempPath := temp.Name()
	temp.Close()

	if err := w.Engine.Anonymize(ctx, path, tempPath, w.IDs); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("anonymize: %w", err)
	}

	anonDs, err := dcm.ReadDicomMetadataOnly(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("read anonymized object: %w", err)
	}
	anon := anonDs.Identity()
	if anon.PatientName == "" {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w in anonymized object", ErrNoPatientName)
	}

	dest := OutputPath(w.OutputDir, anon)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("could not create output directory: %w", err)
	}
	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("could not move anonymized object: %w", err)
	}

	if err := w.Index.AddPatient(orig.PatientName, orig.PatientID, anon.PatientName, anon.PatientID); err != nil {
		return dest, fmt.Errorf("index patient: %w", err)
	}
	if err := w.Index.AddStudy(orig.PatientID, orig.StudyDate, orig.AccessionNumber, anon.StudyDate, anon.AccessionNumber); err != nil {
		return dest, fmt.Errorf("index study: %w", err)
	}
	return dest, nil
}

// ProcessFolder anonymizes every DICOM file under root. Per-file failures are
// logged and counted; only failing to list the folder is an error.
func (w *Workflow) ProcessFolder(ctx context.Context, root string, recursive bool, progressCb ProgressCallback) (*Stats, error) {
	log := w.Log.With().Str("run_id", uuid.NewString()).Logger()

	files, err := dcm.FindDicomFiles(root, recursive)
	if err != nil {
		return nil, fmt.Errorf("could not find DICOM files: %w", err)
	}
	files = w.excludeOutput(files)
	log.Info().Int("files", len(files)).Str("input", root).Msg("starting anonymization")

	stats := &Stats{}
	patients := make(map[string]bool)
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		name := filepath.Base(path)

		dest, err := w.ProcessFile(ctx, path)
		status := "success"
		switch {
		case errors.Is(err, ErrRejected):
			stats.Skipped++
			status = "skipped"
			log.Debug().Err(err).Str("file", path).Msg("file rejected")
		case err != nil && dest == "":
			stats.Failed++
			status = "failed"
			log.Warn().Err(err).Str("file", path).Msg("anonymization failed")
		case err != nil:
			// Placed but not indexed.
			stats.Failed++
			status = "failed"
			log.Error().Err(err).Str("file", path).Str("output", dest).Msg("anonymized file not indexed")
		default:
			stats.Success++
			patients[filepath.Dir(filepath.Dir(filepath.Dir(dest)))] = true
		}
		if progressCb != nil {
			progressCb(i+1, len(files), name, status)
		}
	}
	stats.Patients = len(patients)

	log.Info().
		Int("success", stats.Success).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Msg("anonymization complete")
	return stats, nil
}

func (w *Workflow) excludeOutput(files []string) []string {
	out, err := filepath.Abs(w.OutputDir)
	if err != nil {
		return files
	}
	kept := files[:0]
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err == nil && strings.HasPrefix(abs, out+string(os.PathSeparator)) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// OutputPath is where an anonymized object is placed:
// <dir>/<PatientName>/Study-<StudyDate>T<StudyTime>/Series-<n>/Image-<n>.dcm.
// The patient directory name is what reports look up in the inverse index.
func OutputPath(dir string, id dcm.Identity) string {
	return filepath.Join(dir,
		pathSafe(id.PatientName),
		"Study-"+pathSafe(id.StudyDate)+"T"+pathSafe(id.StudyTime),
		"Series-"+pathSafe(id.SeriesNumber),
		"Image-"+pathSafe(id.InstanceNumber)+".dcm")
}

func pathSafe(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(s)
}

var (
	// ErrRejected marks objects the workflow's filters turned away.
	ErrRejected      = errors.New("file rejected")
	// ErrNoPatientName is returned for objects that cannot be filed or
	// indexed because they carry no patient name.
	ErrNoPatientName = errors.New("no patient name")

	errNotImage         = fmt.Errorf("%w: not an image", ErrRejected)
	errStructuredReport = fmt.Errorf("%w: structured report", ErrRejected)
	errSecondaryCapture = fmt.Errorf("%w: secondary capture", ErrRejected)
)
