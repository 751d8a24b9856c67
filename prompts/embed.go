package prompts

import _ "embed"

// FrameworkYAML is the default review framework: per-phase system prompts,
// research operation prompts and category guidance.
//
//go:embed framework.yaml
var FrameworkYAML []byte
