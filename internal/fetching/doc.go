// Package fetching implements the fetch stage: it downloads both motion
// sources of a job into the job's work directory.
//
// The stage artifact is the directory holding input1.bvh and input2.bvh. The
// directory is keyed by the job's deterministic ID so a resumed run finds the
// files a previous run downloaded.
package fetching
