package validator

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bioimage-io/backoffice/types"
	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/xerrors"
)

var log = logging.Logger("validator")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Validator checks a resource given by the url of its metadata.
type Validator interface {
	Validate(ctx context.Context, rdfUrl string, weightFormat string) (*types.ValidationSummary, error)
}

// CommandValidator runs an external validator command that writes a JSON
// summary to the path given by --summary-path.
type CommandValidator struct {
	command []string
}

func NewCommandValidator(command []string) (*CommandValidator, error) {
	if len(command) == 0 {
		return nil, types.Wrapf(types.ErrInvalidConfig, "empty validator command")
	}
	return &CommandValidator{command: command}, nil
}

// Validate runs the command. A command that fails without writing a summary
// yields a failed summary carrying its output, only failures to start the
// command are returned as errors.
func (v *CommandValidator) Validate(ctx context.Context, rdfUrl string, weightFormat string) (*types.ValidationSummary, error) {
	dir, err := os.MkdirTemp("", "backoffice-validate-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	summaryPath := filepath.Join(dir, "summary.json")
	args := append(append([]string{}, v.command[1:]...), rdfUrl, "--summary-path", summaryPath)
	if weightFormat != "" {
		args = append(args, "--weight-format", weightFormat)
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, v.command[0], args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	log.Infof("validating %s", rdfUrl)
	runErr := cmd.Run()
	var exitErr *exec.ExitError
	if runErr != nil && !xerrors.As(runErr, &exitErr) {
		return nil, types.Wrap(types.ErrValidatorFailed, runErr)
	}

	data, err := os.ReadFile(summaryPath)
	if err != nil {
		msg := output.String()
		if runErr != nil {
			msg = runErr.Error() + "\n" + msg
		}
		log.Errorf("validator wrote no summary for %s: %s", rdfUrl, msg)
		return &types.ValidationSummary{
			Name:       "bioimageio validation",
			SourceName: rdfUrl,
			Status:     types.ValidationFailed,
			Details: []types.ValidationDetail{{
				Name:   "run validator",
				Status: types.ValidationFailed,
				Errors: []string{msg},
			}},
		}, nil
	}

	var summary types.ValidationSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, types.Wrapf(types.ErrValidatorFailed, "invalid summary: %v", err)
	}
	if runErr != nil && summary.Status == types.ValidationPassed {
		summary.Status = types.ValidationFailed
	}
	log.Infof("validation of %s %s", rdfUrl, summary.Status)
	return &summary, nil
}
