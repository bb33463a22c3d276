package types

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const VersionsFileName = "versions.json"

// NumSteps is the number of steps a staged version goes through.
const NumSteps = 6

type (
	StageNumber   int
	PublishNumber int
)

const (
	StatusUnpacking        = "unpacking"
	StatusUnpacked         = "unpacked"
	StatusTesting          = "testing"
	StatusAwaitingReview   = "awaiting review"
	StatusChangesRequested = "changes requested"
	StatusAccepted         = "accepted"
	StatusSuperseded       = "superseded"
	StatusPublished        = "published"
)

// StagedStatus is the status of a staged version. The set of implementations
// is closed; use a type switch to inspect the concrete status.
type StagedStatus interface {
	Name() string
	Step() int
	Describe() string
	Time() time.Time

	stagedStatus()
}

type StatusInfo struct {
	Description string
	Timestamp   time.Time
}

func (s StatusInfo) Describe() string { return s.Description }
func (s StatusInfo) Time() time.Time  { return s.Timestamp }
func (StatusInfo) stagedStatus()      {}

type (
	UnpackingStatus        struct{ StatusInfo }
	UnpackedStatus         struct{ StatusInfo }
	TestingStatus          struct{ StatusInfo }
	AwaitingReviewStatus   struct{ StatusInfo }
	ChangesRequestedStatus struct{ StatusInfo }
	AcceptedStatus         struct{ StatusInfo }

	SupersededStatus struct {
		StatusInfo
		By StageNumber
	}

	// PublishedStagedStatus marks a staged version that was promoted to a
	// published version.
	PublishedStagedStatus struct {
		StatusInfo
		PublishNumber PublishNumber
	}
)

func (UnpackingStatus) Name() string        { return StatusUnpacking }
func (UnpackedStatus) Name() string         { return StatusUnpacked }
func (TestingStatus) Name() string          { return StatusTesting }
func (AwaitingReviewStatus) Name() string   { return StatusAwaitingReview }
func (ChangesRequestedStatus) Name() string { return StatusChangesRequested }
func (AcceptedStatus) Name() string         { return StatusAccepted }
func (SupersededStatus) Name() string       { return StatusSuperseded }
func (PublishedStagedStatus) Name() string  { return StatusPublished }

func (UnpackingStatus) Step() int        { return 1 }
func (UnpackedStatus) Step() int         { return 2 }
func (TestingStatus) Step() int          { return 3 }
func (AwaitingReviewStatus) Step() int   { return 4 }
func (ChangesRequestedStatus) Step() int { return 5 }
func (AcceptedStatus) Step() int         { return 5 }
func (SupersededStatus) Step() int       { return 6 }
func (PublishedStagedStatus) Step() int  { return 6 }

func NewStatusInfo(description string) StatusInfo {
	return StatusInfo{Description: description, Timestamp: time.Now().UTC()}
}

// statusRecord is the stored form of every staged status, discriminated by
// its name.
type statusRecord struct {
	Name          string         `json:"name"`
	Step          int            `json:"step"`
	NumSteps      int            `json:"num_steps"`
	Description   string         `json:"description"`
	Timestamp     time.Time      `json:"timestamp"`
	By            *StageNumber   `json:"by,omitempty"`
	PublishNumber *PublishNumber `json:"publish_number,omitempty"`
}

func encodeStatus(s StagedStatus) statusRecord {
	r := statusRecord{
		Name:        s.Name(),
		Step:        s.Step(),
		NumSteps:    NumSteps,
		Description: s.Describe(),
		Timestamp:   s.Time(),
	}
	switch st := s.(type) {
	case SupersededStatus:
		by := st.By
		r.By = &by
	case PublishedStagedStatus:
		n := st.PublishNumber
		r.PublishNumber = &n
	}
	return r
}

func decodeStatus(r statusRecord) (StagedStatus, error) {
	info := StatusInfo{Description: r.Description, Timestamp: r.Timestamp}
	switch r.Name {
	case StatusUnpacking:
		return UnpackingStatus{info}, nil
	case StatusUnpacked:
		return UnpackedStatus{info}, nil
	case StatusTesting:
		return TestingStatus{info}, nil
	case StatusAwaitingReview:
		return AwaitingReviewStatus{info}, nil
	case StatusChangesRequested:
		return ChangesRequestedStatus{info}, nil
	case StatusAccepted:
		return AcceptedStatus{info}, nil
	case StatusSuperseded:
		if r.By == nil {
			return nil, Wrapf(ErrDecodeDocumentFailed, "superseded status without 'by'")
		}
		return SupersededStatus{StatusInfo: info, By: *r.By}, nil
	case StatusPublished:
		if r.PublishNumber == nil {
			return nil, Wrapf(ErrDecodeDocumentFailed, "published status without 'publish_number'")
		}
		return PublishedStagedStatus{StatusInfo: info, PublishNumber: *r.PublishNumber}, nil
	default:
		return nil, Wrapf(ErrDecodeDocumentFailed, "unknown staged status %q", r.Name)
	}
}

type StagedVersionInfo struct {
	SemVer    *string
	Timestamp time.Time
	Status    StagedStatus
}

type stagedVersionRecord struct {
	SemVer    *string       `json:"sem_ver"`
	Timestamp time.Time     `json:"timestamp"`
	Status    *statusRecord `json:"status"`
}

func (i StagedVersionInfo) MarshalJSON() ([]byte, error) {
	r := stagedVersionRecord{SemVer: i.SemVer, Timestamp: i.Timestamp}
	if i.Status != nil {
		s := encodeStatus(i.Status)
		r.Status = &s
	}
	return json.Marshal(r)
}

func (i *StagedVersionInfo) UnmarshalJSON(data []byte) error {
	var r stagedVersionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	i.SemVer = r.SemVer
	i.Timestamp = r.Timestamp
	i.Status = nil
	if r.Status != nil {
		s, err := decodeStatus(*r.Status)
		if err != nil {
			return err
		}
		i.Status = s
	}
	return nil
}

// PublishedStatus is the only status of a published version.
type PublishedStatus struct {
	StageNumber StageNumber
}

type publishedStatusRecord struct {
	Name        string      `json:"name"`
	StageNumber StageNumber `json:"stage_number"`
}

func (s PublishedStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(publishedStatusRecord{Name: StatusPublished, StageNumber: s.StageNumber})
}

func (s *PublishedStatus) UnmarshalJSON(data []byte) error {
	var r publishedStatusRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if r.Name != "" && r.Name != StatusPublished {
		return Wrapf(ErrDecodeDocumentFailed, "unknown published status %q", r.Name)
	}
	s.StageNumber = r.StageNumber
	return nil
}

type PublishedVersionInfo struct {
	SemVer    *string         `json:"sem_ver"`
	Timestamp time.Time       `json:"timestamp"`
	Status    PublishedStatus `json:"status"`
	Doi       *string         `json:"doi"`
}

// Versions is the ledger of a resource concept, stored as versions.json.
type Versions struct {
	Published  map[PublishNumber]PublishedVersionInfo `json:"published"`
	Staged     map[StageNumber]StagedVersionInfo      `json:"staged"`
	ConceptDoi *string                                `json:"concept_doi"`
}

func NewVersions() *Versions {
	return &Versions{
		Published: make(map[PublishNumber]PublishedVersionInfo),
		Staged:    make(map[StageNumber]StagedVersionInfo),
	}
}

func (v *Versions) FileName() string { return VersionsFileName }

// Merge applies update onto v: entries are merged by key with update
// winning, and the concept doi may only be set once.
func (v *Versions) Merge(update *Versions) error {
	if update == nil {
		return nil
	}
	if update.ConceptDoi != nil {
		if v.ConceptDoi != nil && *v.ConceptDoi != *update.ConceptDoi {
			return Wrapf(ErrConceptDoiConflict, "%s != %s", *v.ConceptDoi, *update.ConceptDoi)
		}
	}
	if v.Published == nil {
		v.Published = make(map[PublishNumber]PublishedVersionInfo)
	}
	if v.Staged == nil {
		v.Staged = make(map[StageNumber]StagedVersionInfo)
	}
	for n, info := range update.Published {
		v.Published[n] = info
	}
	for n, info := range update.Staged {
		v.Staged[n] = info
	}
	if update.ConceptDoi != nil {
		doi := *update.ConceptDoi
		v.ConceptDoi = &doi
	}
	return nil
}

// PublishedSemVers returns the semantic versions of all published versions
// that declare one.
func (v *Versions) PublishedSemVers() map[string]PublishNumber {
	res := make(map[string]PublishNumber)
	for n, info := range v.Published {
		if info.SemVer != nil {
			res[*info.SemVer] = n
		}
	}
	return res
}
