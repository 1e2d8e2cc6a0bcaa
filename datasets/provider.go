// Package datasets implements the progressive data source feeding the
// trainer: a Loader that serves image batches at the current resolution
// tier, downscaled from a full-resolution Provider, with an internal
// progress counter the checkpoint manager can set on resume.
package datasets

// Provider is a source of full-resolution training images. Image writes
// sample i into dst as channel-major [c][h][w] values in [0,1]; dst has
// Channels()*MaxSize()*MaxSize() elements. Implementations must be safe
// for concurrent Image calls.
type Provider interface {
	Len() int
	MaxSize() int
	Channels() int
	Image(i int, dst []float64)
}
