package anonymizer

import "github.com/suyashkumar/dicom/pkg/tag"

// PIITagsToClear are emptied by the metadata engine. PatientName, PatientID
// and AccessionNumber are not listed: they are replaced with surrogates.
var PIITagsToClear = []tag.Tag{
	tag.PatientBirthDate,
	tag.PatientBirthTime,
	tag.PatientAge,
	tag.PatientAddress,
	tag.PatientTelephoneNumbers,
	tag.OtherPatientIDs,
	tag.PatientMotherBirthName,
	tag.MilitaryRank,
	tag.EthnicGroup,
	tag.PatientReligiousPreference,
	tag.PatientComments,

	tag.InstitutionAddress,
	tag.InstitutionalDepartmentName,
	tag.StationName,

	tag.ReferringPhysicianName,
	tag.ReferringPhysicianAddress,
	tag.ReferringPhysicianTelephoneNumbers,
	tag.PerformingPhysicianName,
	tag.ScheduledPerformingPhysicianName,
	tag.OperatorsName,
	tag.PhysiciansOfRecord,
	tag.NameOfPhysiciansReadingStudy,
	tag.RequestingPhysician,

	tag.PerformedProcedureStepID,
	tag.ScheduledProcedureStepID,
	tag.StudyID,
}

// PIISequencesToRemove are dropped whole: their items carry identifiers
// (other patient ids, the original accession) that clearing cannot reach.
var PIISequencesToRemove = []tag.Tag{
	tag.OtherPatientIDsSequence,
	tag.RequestAttributesSequence,
}

// DateTagsToTruncate keep only year and month (YYYYMM01).
var DateTagsToTruncate = []tag.Tag{
	tag.StudyDate,
	tag.SeriesDate,
	tag.AcquisitionDate,
	tag.ContentDate,
	tag.InstanceCreationDate,
}
