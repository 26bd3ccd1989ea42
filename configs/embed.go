// Package configs provides embedded configuration templates.
//
// The example files are embedded at build time so `clinrag config init`
// can write a documented starting config regardless of how the binary
// was installed.
package configs

import _ "embed"

// ConfigTemplate is the annotated starting point for the user config,
// written to ~/.config/clinrag/config.yaml by `clinrag config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string

// TemplatesTemplate documents the custom query template file format
// referenced by templates.file in the config.
//
//go:embed templates.example.yaml
var TemplatesTemplate string
