package repo

import (
	"os"
	"path/filepath"

	"github.com/bioimage-io/backoffice/node/config"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

var log = logging.Logger("repo")

const (
	fsConfig  = "config.toml"
	fsObjects = "objects"
)

// Repo is the local directory holding the backoffice configuration and,
// for the local backend, the stored objects.
type Repo struct {
	path       string
	configPath string
}

func NewRepo(path string) (*Repo, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	return &Repo{
		path:       path,
		configPath: filepath.Join(path, fsConfig),
	}, nil
}

func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) ConfigPath() string {
	return r.configPath
}

func (r *Repo) Exists() (bool, error) {
	_, err := os.Stat(r.configPath)
	notexist := os.IsNotExist(err)
	if notexist {
		err = nil
	}
	return !notexist, err
}

// Init creates the repo directory and writes the default config, an
// existing config is left untouched.
func (r *Repo) Init(folder string) error {
	exist, err := r.Exists()
	if err != nil {
		return err
	}
	if exist {
		log.Infof("repo at '%s' exists already", r.path)
		return nil
	}

	log.Infof("Initializing repo at '%s'", r.path)
	err = os.MkdirAll(r.path, 0755) //nolint: gosec
	if err != nil && !os.IsExist(err) {
		return err
	}

	if err := r.initConfig(folder); err != nil {
		return xerrors.Errorf("init config: %w", err)
	}
	return nil
}

// Config loads the config file, falling back to the defaults when the repo
// was never initialized.
func (r *Repo) Config() (*config.Backoffice, error) {
	c, err := config.FromFile(r.configPath, r.defaultConfig(""))
	if err != nil {
		return nil, err
	}

	cfg, ok := c.(*config.Backoffice)
	if !ok {
		return nil, xerrors.Errorf("invalid config for repo, got: %T", c)
	}
	return cfg, nil
}

func (r *Repo) initConfig(folder string) error {
	_, err := os.Stat(r.configPath)
	if err == nil {
		// exists
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	c, err := os.Create(r.configPath)
	if err != nil {
		return err
	}

	comm, err := config.ConfigUpdate(r.defaultConfig(folder), config.DefaultBackoffice(), true)
	if err != nil {
		return xerrors.Errorf("load default: %w", err)
	}
	_, err = c.Write(comm)
	if err != nil {
		return xerrors.Errorf("write config: %w", err)
	}

	if err := c.Close(); err != nil {
		return xerrors.Errorf("close config: %w", err)
	}
	return nil
}

func (r *Repo) defaultConfig(folder string) *config.Backoffice {
	cfg := config.DefaultBackoffice()
	cfg.Store.LocalRoot = r.join(fsObjects)
	if folder != "" {
		cfg.S3.Folder = folder
	}
	return cfg
}

// join joins path elements with r.path
func (r *Repo) join(paths ...string) string {
	return filepath.Join(append([]string{r.path}, paths...)...)
}
