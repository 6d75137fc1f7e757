// Package blend reads and writes BVH motion files and blends two motions.
//
// Only the linear method is computed locally. It resamples both motions onto
// a shared normalized timeline and interpolates every channel value by the
// blend ratio. The snn and spade methods need a trained model that this
// package does not ship, so they fail permanently.
package blend
