package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/bioimage-io/backoffice/node/document"
	"github.com/bioimage-io/backoffice/types"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("lifecycle")

// Machine applies status transitions to the ledger of a concept.
type Machine struct {
	docs   *document.Store
	runUrl string
}

func NewMachine(docs *document.Store, runUrl string) *Machine {
	return &Machine{docs: docs, runUrl: runUrl}
}

// SetStatus moves staged version n of concept to next. A rejected
// transition is logged and recorded in the version log, it is not an
// error. The returned bool reports whether the status was written.
func (m *Machine) SetStatus(ctx context.Context, concept string, n types.StageNumber, next types.StagedStatus) (bool, error) {
	return m.set(ctx, concept, n, next, nil)
}

// SetStatusAndSemVer is SetStatus that also records the semantic version
// declared by the staged metadata.
func (m *Machine) SetStatusAndSemVer(ctx context.Context, concept string, n types.StageNumber, next types.StagedStatus, semVer *string) (bool, error) {
	return m.set(ctx, concept, n, next, semVer)
}

func (m *Machine) set(ctx context.Context, concept string, n types.StageNumber, next types.StagedStatus, semVer *string) (bool, error) {
	versions, err := m.docs.GetVersions(ctx, concept)
	if err != nil {
		return false, err
	}

	info, exists := versions.Staged[n]
	var current types.StagedStatus
	if exists {
		current = info.Status
	} else {
		info = types.StagedVersionInfo{Timestamp: time.Now().UTC()}
	}

	folder := types.StagedFolder(concept, n)
	switch Decide(current, next) {
	case Reject:
		msg := fmt.Sprintf("cannot change status from '%s' to '%s' for %s %s", current.Name(), next.Name(), concept, n)
		log.Error(msg)
		return false, m.docs.Update(ctx, folder, &types.Log{
			LogVersion: types.LogVersion,
			Entries:    []types.LogEntry{types.NewLogEntry(msg, nil, m.runUrl)},
		})
	case ApplyWithWarning:
		log.Warnf("unexpected status transition of %s %s from '%s' (step %d) to '%s' (step %d)",
			concept, n, current.Name(), current.Step(), next.Name(), next.Step())
	}

	info.Status = next
	if semVer != nil {
		info.SemVer = semVer
	}
	delta := types.NewVersions()
	delta.Staged[n] = info
	if err := m.docs.Update(ctx, concept, delta); err != nil {
		return false, err
	}

	msg := fmt.Sprintf("updating status to '%s'", next.Name())
	if next.Describe() != "" {
		msg += ": " + next.Describe()
	}
	log.Infof("%s %s %s", concept, n, msg)
	return true, m.docs.Update(ctx, folder, &types.Log{
		LogVersion: types.LogVersion,
		Entries:    []types.LogEntry{types.NewLogEntry(msg, nil, m.runUrl)},
	})
}
