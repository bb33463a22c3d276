package utils

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

var log = logging.Logger("http")

const UserAgent = "bioimageio-backoffice"

type leveledLogger struct {
	l *logging.ZapEventLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.l.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.l.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.l.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.l.Warnw(msg, kv...) }

// NewHttpClient returns a retrying client on a pooled transport.
func NewHttpClient(retryMax int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 30 * time.Second
	client.Logger = leveledLogger{l: log}
	return client
}

func IsUrl(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch downloads source into memory. A source that is not an http(s) url
// is read from the local file system.
func Fetch(ctx context.Context, client *retryablehttp.Client, source string) ([]byte, error) {
	if !IsUrl(source) {
		path, err := homedir.Expand(strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, err
		}
		return os.ReadFile(path)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to make request to %s: %w", source, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("failed to fetch %s: %s", source, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("failed to read %s: %w", source, err)
	}
	log.Debugf("fetched %s (%d bytes)", source, len(data))
	return data, nil
}
