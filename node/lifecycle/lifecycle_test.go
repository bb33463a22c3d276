package lifecycle

import (
	"context"
	"testing"

	"github.com/bioimage-io/backoffice/node/document"
	"github.com/bioimage-io/backoffice/store"
	"github.com/bioimage-io/backoffice/types"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func info(d string) types.StatusInfo {
	return types.NewStatusInfo(d)
}

func TestDecide(t *testing.T) {
	unpacking := types.UnpackingStatus{StatusInfo: info("")}
	unpacked := types.UnpackedStatus{StatusInfo: info("")}
	testing_ := types.TestingStatus{StatusInfo: info("")}
	awaiting := types.AwaitingReviewStatus{StatusInfo: info("")}
	accepted := types.AcceptedStatus{StatusInfo: info("")}
	changes := types.ChangesRequestedStatus{StatusInfo: info("")}
	superseded := types.SupersededStatus{StatusInfo: info(""), By: 2}

	require.Equal(t, Apply, Decide(nil, unpacking))
	require.Equal(t, Apply, Decide(unpacking, unpacked))
	require.Equal(t, Apply, Decide(testing_, testing_))
	require.Equal(t, Apply, Decide(awaiting, superseded))
	require.Equal(t, Apply, Decide(changes, accepted))
	require.Equal(t, ApplyWithWarning, Decide(unpacked, accepted))
	require.Equal(t, ApplyWithWarning, Decide(unpacking, superseded))
	require.Equal(t, Reject, Decide(unpacked, unpacking))
	require.Equal(t, Reject, Decide(superseded, accepted))
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(types.SupersededStatus{}))
	require.True(t, IsTerminal(types.PublishedStagedStatus{}))
	require.False(t, IsTerminal(types.AcceptedStatus{}))
	require.False(t, IsTerminal(types.ChangesRequestedStatus{}))
}

func TestNumbering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := types.NewVersions()
		stages := rapid.IntRange(0, 30).Draw(t, "stages")
		publishes := rapid.IntRange(0, stages).Draw(t, "publishes")

		for i := 0; i < stages; i++ {
			n := NextStageNumber(v)
			require.NotContains(t, v.Staged, n)
			v.Staged[n] = types.StagedVersionInfo{}
		}
		for i := 0; i < publishes; i++ {
			n := NextPublishNumber(v)
			v.Published[n] = types.PublishedVersionInfo{}
		}

		for i := 1; i <= stages; i++ {
			require.Contains(t, v.Staged, types.StageNumber(i))
		}
		for i := 1; i <= publishes; i++ {
			require.Contains(t, v.Published, types.PublishNumber(i))
		}
		require.Equal(t, types.StageNumber(stages+1), NextStageNumber(v))
	})
}

func newMachine(t require.TestingT) (*Machine, *document.Store) {
	client, err := store.NewClient(store.NewMemBackend(""), "testing", nil)
	require.NoError(t, err)
	docs := document.NewStore(client, false)
	return NewMachine(docs, "https://ci.example.org/run/1"), docs
}

var allStatuses = []func() types.StagedStatus{
	func() types.StagedStatus { return types.UnpackingStatus{StatusInfo: info("")} },
	func() types.StagedStatus { return types.UnpackedStatus{StatusInfo: info("")} },
	func() types.StagedStatus { return types.TestingStatus{StatusInfo: info("")} },
	func() types.StagedStatus { return types.AwaitingReviewStatus{StatusInfo: info("")} },
	func() types.StagedStatus { return types.ChangesRequestedStatus{StatusInfo: info("")} },
	func() types.StagedStatus { return types.AcceptedStatus{StatusInfo: info("")} },
	func() types.StagedStatus { return types.SupersededStatus{StatusInfo: info(""), By: 9} },
	func() types.StagedStatus { return types.PublishedStagedStatus{StatusInfo: info(""), PublishNumber: 1} },
}

func TestMonotonicSteps(t *testing.T) {
	ctx := context.Background()
	rapid.Check(t, func(t *rapid.T) {
		m, docs := newMachine(t)
		picks := rapid.SliceOfN(rapid.IntRange(0, len(allStatuses)-1), 1, 20).Draw(t, "statuses")

		last := 0
		for _, i := range picks {
			next := allStatuses[i]()
			applied, err := m.SetStatus(ctx, "affable-shark", 1, next)
			require.NoError(t, err)
			require.Equal(t, next.Step() >= last, applied)

			v, err := docs.GetVersions(ctx, "affable-shark")
			require.NoError(t, err)
			step := v.Staged[1].Status.Step()
			require.GreaterOrEqual(t, step, last)
			last = step
		}
	})
}

func TestRejectedTransitionIsLogged(t *testing.T) {
	ctx := context.Background()
	m, docs := newMachine(t)

	applied, err := m.SetStatus(ctx, "c", 1, types.AwaitingReviewStatus{StatusInfo: info("")})
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = m.SetStatus(ctx, "c", 1, types.UnpackingStatus{StatusInfo: info("again")})
	require.NoError(t, err)
	require.False(t, applied)

	v, err := docs.GetVersions(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, types.StatusAwaitingReview, v.Staged[1].Status.Name())

	l, err := docs.GetLog(ctx, "c/staged/1")
	require.NoError(t, err)
	require.Len(t, l.Entries, 2)
	require.Contains(t, l.Entries[1].Message, "cannot change status")
	require.Equal(t, "https://ci.example.org/run/1", *l.Entries[1].RunUrl)
}

func TestSemVerIsKept(t *testing.T) {
	ctx := context.Background()
	m, docs := newMachine(t)

	semVer := "0.1.0"
	_, err := m.SetStatusAndSemVer(ctx, "c", 1, types.UnpackedStatus{StatusInfo: info("")}, &semVer)
	require.NoError(t, err)
	_, err = m.SetStatus(ctx, "c", 1, types.TestingStatus{StatusInfo: info("")})
	require.NoError(t, err)

	v, err := docs.GetVersions(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, "0.1.0", *v.Staged[1].SemVer)
}
