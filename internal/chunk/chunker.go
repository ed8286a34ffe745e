// Package chunk normalizes document text and splits it into overlapping
// fixed-width windows. Offsets and widths count Unicode code points.
package chunk

import (
	"fmt"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

// Window defaults.
const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 150
	CharsPerToken   = 4 // rough estimate used for TokensEst
)

// Window is one chunk of normalized text covering [Start, End).
type Window struct {
	Start int
	End   int
	Text  string
}

// Options configures the chunker.
type Options struct {
	MaxChars int // window width (default: DefaultMaxChars)
	Overlap  int // characters shared by consecutive windows, in [0, MaxChars)
}

// DefaultOptions returns 1200-character windows with 150 characters of overlap.
func DefaultOptions() Options {
	return Options{MaxChars: DefaultMaxChars, Overlap: DefaultOverlap}
}

// Chunker splits normalized text into windows.
type Chunker struct {
	options Options
}

// NewChunker validates opts. A zero MaxChars takes the default.
func NewChunker(opts Options) (*Chunker, error) {
	if opts.MaxChars == 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxChars < 0 {
		return nil, amerrors.ValidationError(fmt.Sprintf("max_chars must be positive, got %d", opts.MaxChars), nil)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.MaxChars {
		return nil, amerrors.ValidationError(
			fmt.Sprintf("overlap must be in [0, %d), got %d", opts.MaxChars, opts.Overlap), nil)
	}
	return &Chunker{options: opts}, nil
}

// Options returns the validated options.
func (c *Chunker) Options() Options {
	return c.options
}

// Chunk splits text using the chunker's options.
func (c *Chunker) Chunk(text string) []Window {
	return Split(text, c.options.MaxChars, c.options.Overlap)
}

// Split cuts text into windows of maxChars code points, each starting
// overlap code points before the previous one ended. Text no longer than
// maxChars (including empty text) yields exactly one window. An overlap
// outside [0, maxChars) is replaced by maxChars/4 so the loop always advances.
func Split(text string, maxChars, overlap int) []Window {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = maxChars / 4
	}

	runes := []rune(text)
	n := len(runes)
	if n <= maxChars {
		return []Window{{Start: 0, End: n, Text: text}}
	}

	windows := make([]Window, 0, n/(maxChars-overlap)+1)
	for start := 0; ; {
		end := min(n, start+maxChars)
		windows = append(windows, Window{Start: start, End: end, Text: string(runes[start:end])})
		if end == n {
			break
		}
		start = max(0, end-overlap)
	}
	return windows
}

// EstimateTokens approximates the token count of text as
// ceil(len/CharsPerToken), never less than one.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	return max(1, (n+CharsPerToken-1)/CharsPerToken)
}
