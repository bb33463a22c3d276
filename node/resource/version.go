package resource

import (
	"context"
	"fmt"

	"github.com/bioimage-io/backoffice/types"
)

// Version is a staged or a published version of a concept.
type Version interface {
	Id() string
	Concept() *Concept
	// Version is "staged/N" for staged and "N" for published versions.
	Version() string
	Folder() string
	Exists(ctx context.Context) (bool, error)

	RdfPath() string
	RdfUrl() string
	Rdf(ctx context.Context) (Rdf, error)
	FileUrl(name string) string
	Files(ctx context.Context) ([]string, error)
	FileUrls(ctx context.Context) ([]string, error)
	Uploader(ctx context.Context) (*Uploader, error)

	Log(ctx context.Context) (*types.Log, error)
	Chat(ctx context.Context) (*types.Chat, error)
	ExtendLog(ctx context.Context, update *types.Log) error
	ExtendChat(ctx context.Context, update *types.Chat) error
	AddLogEntry(ctx context.Context, message string, details interface{}) error
	ReportError(ctx context.Context, message string) error
	RecordValidation(ctx context.Context, summary *types.ValidationSummary) error
}

// version holds what staged and published versions have in common.
type version struct {
	concept *Concept
	folder  string
	label   string
}

func newVersion(concept *Concept, folder string, label string) version {
	return version{concept: concept, folder: folder, label: label}
}

func (v *version) Id() string {
	return v.concept.id
}

func (v *version) Concept() *Concept {
	return v.concept
}

func (v *version) Version() string {
	return v.label
}

func (v *version) Folder() string {
	return v.folder
}

func (v *version) filePath(name string) string {
	return v.folder + "/files/" + name
}

func (v *version) RdfPath() string {
	return v.filePath(RdfYamlName)
}

func (v *version) RdfUrl() string {
	return v.concept.c.client.Url(v.RdfPath())
}

func (v *version) FileUrl(name string) string {
	return v.concept.c.client.Url(v.filePath(name))
}

func (v *version) Rdf(ctx context.Context) (Rdf, error) {
	data, err := v.concept.c.client.Get(ctx, v.RdfPath())
	if err != nil {
		return nil, err
	}
	return ParseRdf(data)
}

// Files returns the file names of the version relative to its files
// folder.
func (v *version) Files(ctx context.Context) ([]string, error) {
	return v.concept.c.client.List(ctx, v.folder+"/files", true)
}

func (v *version) FileUrls(ctx context.Context) ([]string, error) {
	names, err := v.Files(ctx)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(names))
	for _, name := range names {
		urls = append(urls, v.FileUrl(name))
	}
	return urls, nil
}

func (v *version) Uploader(ctx context.Context) (*Uploader, error) {
	rdf, err := v.Rdf(ctx)
	if err != nil {
		return nil, err
	}
	u := rdf.Uploader()
	if u == nil {
		return nil, types.Wrapf(types.ErrMissingUploader, "%s %s", v.Id(), v.label)
	}
	return u, nil
}

func (v *version) Log(ctx context.Context) (*types.Log, error) {
	return v.concept.c.docs.GetLog(ctx, v.folder)
}

func (v *version) Chat(ctx context.Context) (*types.Chat, error) {
	return v.concept.c.docs.GetChat(ctx, v.folder)
}

func (v *version) ExtendLog(ctx context.Context, update *types.Log) error {
	return v.concept.c.docs.Update(ctx, v.folder, update)
}

func (v *version) ExtendChat(ctx context.Context, update *types.Chat) error {
	return v.concept.c.docs.Update(ctx, v.folder, update)
}

func (v *version) AddLogEntry(ctx context.Context, message string, details interface{}) error {
	return v.ExtendLog(ctx, &types.Log{
		LogVersion: types.LogVersion,
		Entries:    []types.LogEntry{types.NewLogEntry(message, details, v.concept.c.runUrl)},
	})
}

// ReportError records message as error in the version log.
func (v *version) ReportError(ctx context.Context, message string) error {
	log.Errorf("%s %s: %s", v.Id(), v.label, message)
	return v.AddLogEntry(ctx, "error: "+message, nil)
}

func (v *version) addChatMessage(ctx context.Context, author string, text string) error {
	return v.ExtendChat(ctx, &types.Chat{Messages: []types.Message{types.NewMessage(author, text)}})
}

// RecordValidation stores a validator summary in the tool section of the
// version log.
func (v *version) RecordValidation(ctx context.Context, summary *types.ValidationSummary) error {
	tool := summary.Name
	if tool == "" {
		tool = "validator"
	}
	entry := types.NewLogEntry(fmt.Sprintf("%s: %s", tool, summary.Status), summary, v.concept.c.runUrl)
	return v.ExtendLog(ctx, &types.Log{
		LogVersion: types.LogVersion,
		Entries:    []types.LogEntry{},
		Tools:      map[string][]types.LogEntry{tool: {entry}},
	})
}

// notifyUploader mails the uploader. Failures are recorded in the version
// log and not returned.
func (v *version) notifyUploader(ctx context.Context, subjectEnd string, msg string) {
	m := v.concept.c.mailroom
	if m == nil {
		return
	}
	u, err := v.Uploader(ctx)
	if err == nil {
		err = m.NotifyUploader(ctx, u.Email, u.Name, v.Id(), v.label, subjectEnd, msg)
	}
	if err != nil {
		if err := v.ReportError(ctx, fmt.Sprintf("failed to notify uploader: %v", err)); err != nil {
			log.Errorf("%s %s: %v", v.Id(), v.label, err)
		}
	}
}

// PublishedVersion is an immutable published version. Only its doi may be
// attached after publishing.
type PublishedVersion struct {
	version
	n types.PublishNumber
}

func (v *PublishedVersion) Number() types.PublishNumber {
	return v.n
}

func (v *PublishedVersion) Exists(ctx context.Context) (bool, error) {
	versions, err := v.concept.Versions(ctx)
	if err != nil {
		return false, err
	}
	_, ok := versions.Published[v.n]
	return ok, nil
}

func (v *PublishedVersion) Info(ctx context.Context) (types.PublishedVersionInfo, error) {
	versions, err := v.concept.Versions(ctx)
	if err != nil {
		return types.PublishedVersionInfo{}, err
	}
	info, ok := versions.Published[v.n]
	if !ok {
		return info, types.Wrapf(types.ErrNotFound, "%s %s", v.Id(), v.label)
	}
	return info, nil
}

func (v *PublishedVersion) Doi(ctx context.Context) (*string, error) {
	info, err := v.Info(ctx)
	if err != nil {
		return nil, err
	}
	return info.Doi, nil
}

// SetDois attaches the version doi and the concept doi. An existing doi is
// never overwritten with a different one.
func (v *PublishedVersion) SetDois(ctx context.Context, doi string, conceptDoi string) error {
	info, err := v.Info(ctx)
	if err != nil {
		return err
	}
	if info.Doi != nil && *info.Doi != doi {
		return types.Wrapf(types.ErrInvalidParameters, "may not overwrite existing doi=%s with %s", *info.Doi, doi)
	}
	info.Doi = &doi
	delta := types.NewVersions()
	delta.Published[v.n] = info
	delta.ConceptDoi = &conceptDoi
	if err := v.concept.ExtendVersions(ctx, delta); err != nil {
		return err
	}
	return v.AddLogEntry(ctx, fmt.Sprintf("archived with doi %s (concept doi %s)", doi, conceptDoi), nil)
}
