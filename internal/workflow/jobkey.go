package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"blendflow/internal/job"
)

// JobKey derives the stable identity of a job from its inputs. Re-running the
// same descriptor entry yields the same key, which is what checkpoint resume
// and the per-job work directory are keyed on.
func JobKey(input job.Input) string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	write(input.Source1, input.Source2,
		strconv.FormatFloat(input.Ratio, 'f', -1, 64),
		input.Method, input.Output, input.Folder)
	keys := make([]string, 0, len(input.Metadata))
	for k := range input.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k, input.Metadata[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
