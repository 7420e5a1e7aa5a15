// Package configs embeds the configuration templates shipped with grantlens.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config ($XDG_CONFIG_HOME/grantlens/config.yaml)
//  3. Project config (.grantlens.yaml, or --config)
//  4. Environment variables (GRANTLENS_*)
package configs

import _ "embed"

// ConfigTemplate is written by `grantlens config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string

// EvaluationTable is the built-in human label table, used when
// evaluation.labels_path is empty.
//
//go:embed evaluation.yaml
var EvaluationTable []byte
