package internal

import "time"

// DefaultTimeout bounds every request to a switcher
const DefaultTimeout = 30 * time.Second

// ModeOptions carries the run-mode flags shared by commands, the hub and device clients
type ModeOptions struct {
	Debug   bool
	Test    bool
	Timeout time.Duration
}

type ModeOption func(*ModeOptions)

func WithDebug(debug bool) ModeOption {
	return func(opts *ModeOptions) {
		opts.Debug = debug
	}
}

func WithTest(test bool) ModeOption {
	return func(opts *ModeOptions) {
		opts.Test = test
	}
}

func WithTimeout(timeout time.Duration) ModeOption {
	return func(opts *ModeOptions) {
		opts.Timeout = timeout
	}
}

func NewModeOptions(options ...ModeOption) *ModeOptions {
	opts := &ModeOptions{
		Timeout: DefaultTimeout,
	}
	for _, option := range options {
		option(opts)
	}
	return opts
}
