// Package identity keeps the correspondence between original and anonymized
// patient and study identities.
//
// Patients are indexed both ways: forward by original name and inverse by
// anonymized name. Studies are indexed by original patient id so that an
// anonymized study's date and accession can be traced back to the original
// ones when building reports. Nothing in this package writes an original
// identity into anonymized output.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"dicom-deidentifier/internal/store"
)

// StoreName is the name of the index file in the database directory.
const StoreName = "index"

const (
	bucketForward = "fwd"
	bucketInverse = "inv"
	bucketStudies = "studies"
)

var (
	// ErrUnavailable reports that the underlying store could not be used.
	ErrUnavailable = errors.New("identity index unavailable")
	// ErrConflict reports an attempt to map an identity that is already
	// mapped to something else.
	ErrConflict    = errors.New("identity already mapped differently")
	// ErrEmptyName reports a patient correspondence missing the original or
	// the anonymized name, which key the forward and inverse entries.
	ErrEmptyName   = errors.New("patient name is empty")
)

// Index is the persistent bidirectional patient index plus study
// correlations. Mutations are exclusive; lookups may run concurrently.
type Index struct {
	mu    sync.RWMutex
	store *store.Store
	log   zerolog.Logger
}

// Open opens the index stored in dir.
func Open(dir string, log zerolog.Logger) (*Index, error) {
	s, err := store.Open(dir, StoreName)
	if err != nil {
		return nil, fmt.Errorf("open identity index: %w", err)
	}
	return &Index{store: s, log: log}, nil
}

// AddPatient records that the original patient maps to the anonymized one.
// Recording the same pair again is a no-op. A pair that disagrees with an
// existing forward or inverse entry returns ErrConflict and nothing is
// written.
func (x *Index) AddPatient(originalName, originalID, anonName, anonID string) error {
	originalName = strings.TrimSpace(originalName)
	originalID = strings.TrimSpace(originalID)
	anonName = strings.TrimSpace(anonName)
	anonID = strings.TrimSpace(anonID)
	if originalName == "" || anonName == "" {
		return ErrEmptyName
	}

	fwd := PatientIndexEntry{Key: originalName, Name: anonName, ID: anonID}
	inv := PatientIndexEntry{Key: anonName, Name: originalName, ID: originalID}

	x.mu.Lock()
	defer x.mu.Unlock()

	err := x.store.Update(func(tx *store.Tx) error {
		var existing PatientIndexEntry
		found, err := tx.Get(bucketForward, fwd.Key, &existing)
		if err != nil {
			return err
		}
		fwdKnown := found && existing == fwd
		if found && !fwdKnown {
			return fmt.Errorf("%w: original is mapped to %s", ErrConflict, existing)
		}

		found, err = tx.Get(bucketInverse, inv.Key, &existing)
		if err != nil {
			return err
		}
		invKnown := found && existing == inv
		if found && !invKnown {
			return fmt.Errorf("%w: anonymized %q is already in use", ErrConflict, anonName)
		}

		if fwdKnown && invKnown {
			return nil
		}
		if err := tx.Put(bucketForward, fwd.Key, fwd); err != nil {
			return err
		}
		return tx.Put(bucketInverse, inv.Key, inv)
	})
	if errors.Is(err, ErrConflict) {
		x.log.Warn().Str("anon_name", anonName).Msg("patient mapping conflict")
		return err
	}
	if err != nil {
		return unavailable("add patient", err)
	}
	return nil
}

// AddStudy records a study correlation under the original patient id.
// Re-adding an identical correlation changes nothing.
func (x *Index) AddStudy(originalID, phiDate, phiAccession, anonDate, anonAccession string) error {
	originalID = strings.TrimSpace(originalID)
	s := Study{
		PHIDate:       strings.TrimSpace(phiDate),
		PHIAccession:  strings.TrimSpace(phiAccession),
		AnonDate:      strings.TrimSpace(anonDate),
		AnonAccession: strings.TrimSpace(anonAccession),
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	err := x.store.Update(func(tx *store.Tx) error {
		entry := StudyIndexEntry{Key: originalID}
		if _, err := tx.Get(bucketStudies, originalID, &entry); err != nil {
			return err
		}
		if !entry.Add(s) {
			return nil
		}
		return tx.Put(bucketStudies, originalID, entry)
	})
	if err != nil {
		return unavailable("add study", err)
	}
	return nil
}

// GetFwdEntry looks up the anonymized identity of an original patient name.
func (x *Index) GetFwdEntry(originalName string) (PatientIndexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.patient(bucketForward, strings.TrimSpace(originalName))
}

// GetInvEntry looks up the original identity behind an anonymized name.
func (x *Index) GetInvEntry(anonName string) (PatientIndexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.patient(bucketInverse, strings.TrimSpace(anonName))
}

// GetFwdStudyEntry returns the studies of the patient with the given
// original name. Studies are keyed by original id, so the id is resolved
// through the forward and inverse patient entries first.
func (x *Index) GetFwdStudyEntry(originalName string) (StudyIndexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	fwd, ok := x.patient(bucketForward, strings.TrimSpace(originalName))
	if !ok {
		return StudyIndexEntry{}, false
	}
	inv, ok := x.patient(bucketInverse, fwd.Name)
	if !ok {
		x.log.Warn().Str("anon_name", fwd.Name).Msg("forward entry has no inverse")
		return StudyIndexEntry{}, false
	}
	return x.studies(inv.ID)
}

// ListStudiesFor returns every study recorded for an original patient id.
func (x *Index) ListStudiesFor(originalID string) []Study {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entry, _ := x.studies(strings.TrimSpace(originalID))
	return entry.Studies
}

// MatchStudy finds the recorded study of originalID whose anonymized date
// and accession match. Finding none is the normal result for a study that
// has not been correlated.
func (x *Index) MatchStudy(originalID, anonDate, anonAccession string) (Study, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entry, ok := x.studies(strings.TrimSpace(originalID))
	if !ok {
		return Study{}, false
	}
	return entry.Match(strings.TrimSpace(anonDate), strings.TrimSpace(anonAccession))
}

// Patients lists the forward entries ordered by original name.
func (x *Index) Patients() ([]PatientIndexEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	keys, err := x.store.Keys(bucketForward)
	if err != nil {
		return nil, unavailable("list patients", err)
	}
	out := make([]PatientIndexEntry, 0, len(keys))
	for _, k := range keys {
		var e PatientIndexEntry
		if _, err := x.store.Get(bucketForward, k, &e); err != nil {
			return nil, unavailable("list patients", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close flushes and releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.store.Close()
}

func (x *Index) patient(bucket, key string) (PatientIndexEntry, bool) {
	var e PatientIndexEntry
	ok, err := x.store.Get(bucket, key, &e)
	if err != nil {
		x.log.Warn().Err(unavailable("lookup", err)).Str("bucket", bucket).Msg("patient lookup failed")
		return PatientIndexEntry{}, false
	}
	return e, ok
}

func (x *Index) studies(originalID string) (StudyIndexEntry, bool) {
	var e StudyIndexEntry
	ok, err := x.store.Get(bucketStudies, originalID, &e)
	if err != nil {
		x.log.Warn().Err(unavailable("lookup", err)).Msg("study lookup failed")
		return StudyIndexEntry{}, false
	}
	if !ok || len(e.Studies) == 0 {
		return StudyIndexEntry{}, false
	}
	return e, true
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
