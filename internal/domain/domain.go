package domain

const (
	MinSummaryLength     = 10
	MaxSummaryLength     = 150
	SummaryLengthStep    = 10
	DefaultSummaryLength = 50

	// MaxTypedTextLength bounds free-text input at the input surface.
	MaxTypedTextLength = 2000
)

// OutputOptions controls which stages run and how long the summary may be.
type OutputOptions struct {
	KeywordsEnabled bool
	TitleEnabled    bool
	SummaryLength   int
}

func DefaultOutputOptions() OutputOptions {
	return OutputOptions{
		KeywordsEnabled: true,
		TitleEnabled:    true,
		SummaryLength:   DefaultSummaryLength,
	}
}

// Normalize clamps SummaryLength to [MinSummaryLength, MaxSummaryLength]
// and snaps it to the nearest step.
func (o OutputOptions) Normalize() OutputOptions {
	length := min(max(o.SummaryLength, MinSummaryLength), MaxSummaryLength)

	rem := length % SummaryLengthStep
	if rem != 0 {
		length -= rem
		if rem*2 >= SummaryLengthStep {
			length += SummaryLengthStep
		}
	}

	o.SummaryLength = min(max(length, MinSummaryLength), MaxSummaryLength)

	return o
}

// SummaryLengths lists every selectable summary length in ascending order.
func SummaryLengths() []int {
	lengths := make([]int, 0, (MaxSummaryLength-MinSummaryLength)/SummaryLengthStep+1)
	for l := MinSummaryLength; l <= MaxSummaryLength; l += SummaryLengthStep {
		lengths = append(lengths, l)
	}
	return lengths
}

// ChatOptions are the output options remembered for a Telegram chat.
type ChatOptions struct {
	ChatID  int64
	Options OutputOptions
}

// TruncateRunes returns the first n characters of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}

	return s
}
