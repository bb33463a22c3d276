package config

// DocField documents a config field in the commented default config.
type DocField struct {
	Name    string
	Type    string
	Comment string
}

// Doc lists the fields of every config section, keep it in sync with
// types.go.
var Doc = map[string][]DocField{
	"Backoffice": {
		{Name: "S3", Type: "S3", Comment: ""},
		{Name: "Store", Type: "Store", Comment: ""},
		{Name: "Cache", Type: "Cache", Comment: ""},
		{Name: "Collection", Type: "Collection", Comment: ""},
		{Name: "Backup", Type: "Backup", Comment: ""},
		{Name: "Zenodo", Type: "Zenodo", Comment: ""},
		{Name: "Mail", Type: "Mail", Comment: ""},
		{Name: "Validator", Type: "Validator", Comment: ""},
		{Name: "Network", Type: "Network", Comment: ""},
		{Name: "Sources", Type: "Sources", Comment: ""},
		{Name: "Run", Type: "Run", Comment: ""},
	},
	"S3": {
		{Name: "Host", Type: "string", Comment: "host of the S3 compatible endpoint, without scheme means https"},
		{Name: "Bucket", Type: "string", Comment: ""},
		{Name: "Folder", Type: "string", Comment: "root prefix of the collection inside the bucket"},
		{Name: "Region", Type: "string", Comment: ""},
		{Name: "AccessKeyId", Type: "string", Comment: "also read from BACKOFFICE_S3_ACCESS_KEY_ID"},
		{Name: "SecretAccessKey", Type: "string", Comment: "also read from BACKOFFICE_S3_SECRET_ACCESS_KEY"},
	},
	"Store": {
		{Name: "Backend", Type: "string", Comment: "object store backend: s3, local or memory"},
		{Name: "LocalRoot", Type: "string", Comment: "directory of the local backend"},
		{Name: "LocalBaseUrl", Type: "string", Comment: "public url the local backend is served under"},
		{Name: "ConditionalWrites", Type: "bool", Comment: "write documents conditioned on the version that was read"},
		{Name: "Concurrency", Type: "int", Comment: "parallel object copies"},
	},
	"Cache": {
		{Name: "EnableCache", Type: "bool", Comment: ""},
		{Name: "CacheCapacity", Type: "int", Comment: "cache capacity in bytes"},
	},
	"Collection": {
		{Name: "OnError", Type: "string", Comment: "what to do when a concept fails: skip or abort"},
		{Name: "Template", Type: "string", Comment: "json document the generated collection is merged onto, path or url"},
		{Name: "Concurrency", Type: "int", Comment: "concepts read in parallel"},
	},
	"Backup": {
		{Name: "OnError", Type: "string", Comment: "what to do when a version fails: abort or continue"},
	},
	"Zenodo": {
		{Name: "Url", Type: "string", Comment: ""},
		{Name: "AccessToken", Type: "string", Comment: "also read from BACKOFFICE_ZENODO_ACCESS_TOKEN"},
	},
	"Mail": {
		{Name: "Enable", Type: "bool", Comment: "send status updates to uploaders"},
		{Name: "SmtpHost", Type: "string", Comment: ""},
		{Name: "SmtpPort", Type: "int", Comment: ""},
		{Name: "Password", Type: "string", Comment: ""},
		{Name: "BotEmail", Type: "string", Comment: "sender address, notifications addressed to it are skipped"},
		{Name: "SubjectPrefix", Type: "string", Comment: ""},
	},
	"Validator": {
		{Name: "Command", Type: "[]string", Comment: "command and arguments, the rdf url and --summary-path are appended"},
		{Name: "WeightFormat", Type: "string", Comment: ""},
	},
	"Network": {
		{Name: "Timeout", Type: "time.Duration", Comment: "timeout applied to every command"},
		{Name: "RetryMax", Type: "int", Comment: ""},
	},
	"Sources": {
		{Name: "IdParts", Type: "string", Comment: "id parts: adjectives and nouns per resource type"},
		{Name: "Reviewers", Type: "string", Comment: ""},
	},
	"Run": {
		{Name: "RunUrl", Type: "string", Comment: "url to the logs of the current CI run"},
	},
}
