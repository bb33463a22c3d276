package store

import (
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestS3Url(t *testing.T) {
	b := NewS3Backend(S3Options{Host: "uk1s3.embassy.ebi.ac.uk", Bucket: "public-datasets"})
	require.Equal(t,
		"https://uk1s3.embassy.ebi.ac.uk/public-datasets/sandbox.bioimage.io/collection.json",
		b.Url("sandbox.bioimage.io/collection.json"))

	b = NewS3Backend(S3Options{Host: "http://localhost:9000/", Bucket: "b"})
	require.Equal(t, "http://localhost:9000/b/k", b.Url("k"))
}

func TestS3OpenRequiresBucket(t *testing.T) {
	require.Error(t, NewS3Backend(S3Options{Host: "localhost"}).Open())
	require.NoError(t, NewS3Backend(S3Options{Host: "localhost", Bucket: "b"}).Open())
}

func TestS3ErrorCodes(t *testing.T) {
	notFound := xerrors.Errorf("head: %w", &smithy.GenericAPIError{Code: "NotFound"})
	require.True(t, isNotFound(notFound))
	require.False(t, isPreconditionFailed(notFound))

	precondition := &smithy.GenericAPIError{Code: "PreconditionFailed"}
	require.True(t, isPreconditionFailed(precondition))
	require.False(t, isNotFound(precondition))
}

func TestContentType(t *testing.T) {
	require.Equal(t, contentTypeJSON, contentType("a/versions.json"))
	require.Equal(t, contentTypeYAML, contentType("a/rdf.yaml"))
	require.Equal(t, contentTypeBinary, contentType("a/weights.pt"))
}
