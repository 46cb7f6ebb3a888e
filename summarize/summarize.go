// Package summarize invokes the external text-summarization capability.
//
// The capability is slow, rate-limited, and occasionally down. The Invoker
// exists to make that survivable: every failure of the underlying Summarizer
// is converted into the non-fatal ErrUnavailable signal, so already-extracted
// text is never lost to a summarization outage.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUnavailable signals that the summarization capability could not produce
// a summary. It is never fatal: callers persist the extracted text and leave
// the record pending for a later retry.
var ErrUnavailable = errors.New("summarize: capability unavailable")

// Summarizer produces a condensed summary from plain text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Invoker shields callers from summarizer failures.
type Invoker struct {
	summarizer Summarizer
	logger     *slog.Logger
}

// NewInvoker wraps s. A nil s means the capability is not configured; every
// Invoke then reports ErrUnavailable.
func NewInvoker(s Summarizer, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{summarizer: s, logger: logger}
}

// Invoke returns the summary for text, or an error wrapping ErrUnavailable.
// No other error is ever returned.
func (i *Invoker) Invoke(ctx context.Context, text string) (string, error) {
	if i.summarizer == nil {
		return "", fmt.Errorf("%w: no summarizer configured", ErrUnavailable)
	}

	summary, err := i.summarizer.Summarize(ctx, text)
	if err != nil {
		i.logger.Warn("summarization failed", "error", err, "text_len", len(text))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		i.logger.Warn("summarizer returned empty summary", "text_len", len(text))
		return "", fmt.Errorf("%w: empty summary", ErrUnavailable)
	}
	return summary, nil
}
