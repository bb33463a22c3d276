package config

import "time"

// Backoffice is the configuration of the collection backoffice.
type Backoffice struct {
	S3         S3
	Store      Store
	Cache      Cache
	Collection Collection
	Backup     Backup
	Zenodo     Zenodo
	Mail       Mail
	Validator  Validator
	Network    Network
	Sources    Sources
	Run        Run
}

// S3 contains the connection to the S3 compatible object store
type S3 struct {
	// host of the S3 compatible endpoint, without scheme means https
	Host   string
	Bucket string
	// root prefix of the collection inside the bucket
	Folder string
	Region string

	AccessKeyId     string `split_words:"true"`
	SecretAccessKey string `split_words:"true"`
}

// Store contains configs for the object store adapter
type Store struct {
	// object store backend: s3, local or memory
	Backend string

	// directory of the local backend
	LocalRoot string
	// public url the local backend is served under
	LocalBaseUrl string

	// write documents conditioned on the version that was read
	ConditionalWrites bool

	// parallel object copies
	Concurrency int
}

type Cache struct {
	EnableCache bool
	// cache capacity in bytes
	CacheCapacity int
}

// Collection contains configs for collection.json generation
type Collection struct {
	// what to do when a concept fails: skip or abort
	OnError string

	// json document the generated collection is merged onto, path or url
	Template string

	// concepts read in parallel
	Concurrency int
}

// Backup contains configs for the archive backup
type Backup struct {
	// what to do when a version fails: abort or continue
	OnError string
}

type Zenodo struct {
	Url         string
	AccessToken string `split_words:"true"`
}

// Mail contains configs for uploader notifications
type Mail struct {
	Enable   bool
	SmtpHost string
	SmtpPort int
	Password string
	// sender address, notifications addressed to it are skipped
	BotEmail      string
	SubjectPrefix string
}

// Validator contains configs for the external validator command
type Validator struct {
	// command and arguments, the rdf url and --summary-path are appended
	Command      []string
	WeightFormat string
}

type Network struct {
	// timeout applied to every command
	Timeout  time.Duration
	RetryMax int
}

// Sources lists where the collection configuration is read from
type Sources struct {
	// id parts: adjectives and nouns per resource type
	IdParts   string
	Reviewers string
}

type Run struct {
	// url to the logs of the current CI run
	RunUrl string
}
