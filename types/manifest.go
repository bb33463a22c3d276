package types

import "time"

const (
	CollectionFileName       = "collection.json"
	CollectionStagedFileName = "collection_staged.json"
	DoiMappingFileName       = "mapping_dois.json"
)

// ManifestEntry describes one resource version in collection.json.
type ManifestEntry struct {
	Authors        interface{}     `json:"authors"`
	Badges         interface{}     `json:"badges"`
	ConceptDoi     *string         `json:"concept_doi"`
	Covers         interface{}     `json:"covers"`
	Created        time.Time       `json:"created"`
	Description    string          `json:"description"`
	DownloadCount  interface{}     `json:"download_count"`
	Icon           interface{}     `json:"icon,omitempty"`
	Id             string          `json:"id"`
	IdEmoji        string          `json:"id_emoji"`
	License        interface{}     `json:"license"`
	Links          interface{}     `json:"links"`
	Name           string          `json:"name"`
	Nickname       string          `json:"nickname"`
	NicknameIcon   string          `json:"nickname_icon"`
	Tags           interface{}     `json:"tags"`
	TrainingData   interface{}     `json:"training_data,omitempty"`
	Type           string          `json:"type"`
	EntrySource    string          `json:"entry_source"`
	EntrySha256    string          `json:"entry_sha256"`
	RdfSource      string          `json:"rdf_source"`
	VersionNumber  string          `json:"version_number"`
	Versions       []PublishNumber `json:"versions"`
	StagedVersions []string        `json:"staged_versions"`
	Doi            *string         `json:"doi"`
	RootUrl        string          `json:"root_url"`
	Info           interface{}     `json:"info"`
}

type ManifestConfig struct {
	NResources        map[string]int `json:"n_resources"`
	NResourceVersions map[string]int `json:"n_resource_versions"`
	ResourceTypes     []string       `json:"resource_types"`
	UrlRoot           string         `json:"url_root"`
}

// Manifest is the generated collection document. It is merged onto the
// collection template before it is written.
type Manifest struct {
	Collection []ManifestEntry `json:"collection"`
	Config     ManifestConfig  `json:"config"`
}
