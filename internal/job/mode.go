package job

import (
	"fmt"
	"strings"
)

// Mode selects which stages a batch runs. The set is closed; every mode maps
// to a static stage table.
type Mode string

const (
	ModeFull          Mode = "full"
	ModeFetchOnly     Mode = "fetch-only"
	ModeTransformOnly Mode = "transform-only"
	ModeSkipPublish   Mode = "skip-publish"
)

var modeStages = map[Mode][]StageName{
	ModeFull:          {StageFetch, StageTransform, StagePublish},
	ModeFetchOnly:     {StageFetch},
	ModeTransformOnly: {StageTransform},
	ModeSkipPublish:   {StageFetch, StageTransform},
}

var modeAliases = map[string]Mode{
	"full_pipeline":  ModeFull,
	"download_batch": ModeFetchOnly,
	"blend_batch":    ModeTransformOnly,
	"fetch_only":     ModeFetchOnly,
	"transform_only": ModeTransformOnly,
	"skip_publish":   ModeSkipPublish,
}

// Modes lists the canonical mode names in display order.
func Modes() []Mode {
	return []Mode{ModeFull, ModeFetchOnly, ModeTransformOnly, ModeSkipPublish}
}

// ParseMode resolves a canonical name or a legacy workflow alias.
func ParseMode(raw string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := modeStages[Mode(key)]; ok {
		return Mode(key), nil
	}
	if mode, ok := modeAliases[key]; ok {
		return mode, nil
	}
	return "", fmt.Errorf("unknown workflow %q", raw)
}

// Stages returns a copy of the mode's stage table.
func (m Mode) Stages() []StageName {
	stages := modeStages[m]
	out := make([]StageName, len(stages))
	copy(out, stages)
	return out
}

// Includes reports whether the mode runs the stage.
func (m Mode) Includes(stage StageName) bool {
	for _, s := range modeStages[m] {
		if s == stage {
			return true
		}
	}
	return false
}
