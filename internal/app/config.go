package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	SpecsPath string   // hcl spec manifests, file or directory
	SpecName  string   // spec the documents are checked against
	DocPaths  []string // json/yaml documents to check

	LogFormat string
	LogLevel  string
	Port      int // HTTP serve mode, 0 disabled
	List      bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.SpecsPath == "" {
		return nil, errors.New("SpecsPath is a required configuration field and cannot be empty")
	}
	if !cfg.List && cfg.Port == 0 {
		if cfg.SpecName == "" {
			return nil, errors.New("a spec name is required to check documents")
		}
		if len(cfg.DocPaths) == 0 {
			return nil, errors.New("at least one document path is required to check")
		}
	}

	return &cfg, nil
}
