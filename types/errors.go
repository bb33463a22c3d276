package types

import "cosmossdk.io/errors"

var (
	ModuleBackoffice = "backoffice"

	ErrNotFound          = errors.Register(ModuleBackoffice, 10000, "object not found")
	ErrInvalidParameters = errors.Register(ModuleBackoffice, 10001, "invalid parameters")
	ErrUnSupport         = errors.Register(ModuleBackoffice, 10002, "unsupported operation")

	ErrInvalidConfig        = errors.Register(ModuleBackoffice, 10003, "invalid config")
	ErrEncodeConfigFailed   = errors.Register(ModuleBackoffice, 10004, "failed to encode the config")
	ErrDecodeConfigFailed   = errors.Register(ModuleBackoffice, 10005, "failed to decode the config")
	ErrPreconditionFailed   = errors.Register(ModuleBackoffice, 10006, "object changed since it was read")
	ErrConceptDoiConflict   = errors.Register(ModuleBackoffice, 10007, "concept doi is already set to a different value")
	ErrDecodeDocumentFailed = errors.Register(ModuleBackoffice, 10008, "failed to decode the document")

	ErrInvalidPackage           = errors.Register(ModuleBackoffice, 10010, "invalid resource package")
	ErrIdMismatch               = errors.Register(ModuleBackoffice, 10011, "resource id does not match the concept id")
	ErrMissingEmoji             = errors.Register(ModuleBackoffice, 10012, "no emoji found for the resource id")
	ErrMissingField             = errors.Register(ModuleBackoffice, 10013, "required metadata field is missing")
	ErrInvalidId                = errors.Register(ModuleBackoffice, 10014, "invalid resource id")
	ErrMissingUploader          = errors.Register(ModuleBackoffice, 10015, "uploader email is missing")
	ErrUnauthorizedUploader     = errors.Register(ModuleBackoffice, 10016, "uploader is not allowed to stage a new version")
	ErrDuplicateSemanticVersion = errors.Register(ModuleBackoffice, 10017, "semantic version is already published")

	ErrNotReviewer     = errors.Register(ModuleBackoffice, 10020, "not a registered reviewer")
	ErrNotPublishable  = errors.Register(ModuleBackoffice, 10021, "staged version cannot be published")
	ErrLocked          = errors.Register(ModuleBackoffice, 10022, "resource is locked by another operation")
	ErrArchiveFailed   = errors.Register(ModuleBackoffice, 10023, "archive request failed")
	ErrValidatorFailed = errors.Register(ModuleBackoffice, 10024, "validator failed to run")
	ErrNotifyFailed    = errors.Register(ModuleBackoffice, 10025, "failed to deliver the notification")
)

func Wrap(err0 error, err1 error) error {
	return errors.Wrapf(err0, ", due to %v", err1)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
