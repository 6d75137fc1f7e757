// Package blending implements the transform stage, turning two fetched
// motions into one blended BVH file.
package blending
