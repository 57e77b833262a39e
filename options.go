package gldraw

import "log/slog"

// Option configures a Drawable during creation.
//
// Example:
//
//	// Default animation from the variant
//	d, err := gldraw.NewDrawable(ctx, gldraw.Triangle())
//
//	// Frozen triangle
//	d, err := gldraw.NewDrawable(ctx, gldraw.Triangle(), gldraw.WithRotations())
type Option func(*drawableOptions)

// drawableOptions holds optional configuration for Drawable creation.
type drawableOptions struct {
	animator         *Animator
	rotations        []Rotation
	replaceRotations bool
	logger           *slog.Logger
}

// WithAnimator replaces the variant's animator.
func WithAnimator(a Animator) Option {
	return func(o *drawableOptions) {
		o.animator = &a
	}
}

// WithRotations keeps the variant's translation and scale but replaces its
// per-frame rotations. No arguments stops the rotation entirely.
func WithRotations(r ...Rotation) Option {
	return func(o *drawableOptions) {
		o.rotations = r
		o.replaceRotations = true
	}
}

// WithLogger sets a logger for one drawable instead of the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *drawableOptions) {
		o.logger = l
	}
}
