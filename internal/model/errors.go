package model

import "errors"

// Severity classifies how urgently an error needs operator attention.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind is the error taxonomy every capture-path failure is classified into.
type Kind int

const (
	KindBrowserUnavailable Kind = iota
	KindURLLoadFailed
	KindCaptureFailed
	KindTimeout
	KindNetworkError
	KindInvalidURL
	KindBrowserLaunchFailed
	KindBrowserProcessDied
	KindMemoryLimitExceeded
	KindConfigurationError
	KindIOError
	KindSerializationError
	KindElementNotFound
	// Supplemental kinds folded in from the original implementation's wider
	// taxonomy: ChromeError and PageError collapse into CaptureFailed's
	// retry/severity profile, and ResourceBlockingError/SemaphoreError fold
	// into NetworkError's and BrowserUnavailable's profiles respectively.
)

// String renders a short machine-stable label, used as a metrics label value
// and in log fields.
func (k Kind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return "unknown"
}

var kindText = map[Kind]string{
	KindBrowserUnavailable:  "browser instance unavailable",
	KindURLLoadFailed:       "url loading failed",
	KindCaptureFailed:       "screenshot capture failed",
	KindTimeout:             "operation timed out",
	KindNetworkError:        "network error",
	KindInvalidURL:          "invalid url",
	KindBrowserLaunchFailed: "browser launch failed",
	KindBrowserProcessDied:  "browser process died",
	KindMemoryLimitExceeded: "memory limit exceeded",
	KindConfigurationError:  "configuration error",
	KindIOError:             "io error",
	KindSerializationError:  "serialization error",
	KindElementNotFound:     "element not found",
}

// retryable mirrors the original taxonomy's is_retryable: transient
// conditions that a subsequent attempt may resolve.
var retryable = map[Kind]bool{
	KindBrowserUnavailable: true,
	KindURLLoadFailed:      true,
	KindNetworkError:       true,
	KindTimeout:            true,
	KindBrowserProcessDied: true,
}

var severityByKind = map[Kind]Severity{
	KindInvalidURL:          SeverityLow,
	KindElementNotFound:     SeverityLow,
	KindConfigurationError:  SeverityHigh,
	KindMemoryLimitExceeded: SeverityHigh,
	KindBrowserLaunchFailed: SeverityHigh,
}

// ScreenshotError is the structured error type returned by every capture-path
// operation; it carries a taxonomy Kind alongside the wrapped cause so
// callers can branch on classification without string matching.
type ScreenshotError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *ScreenshotError) Error() string {
	if e.Message != "" {
		return kindText[e.Kind] + ": " + e.Message
	}
	return kindText[e.Kind]
}

func (e *ScreenshotError) Unwrap() error { return e.Cause }

// IsRetryable reports whether a subsequent attempt may succeed where this one
// failed.
func (e *ScreenshotError) IsRetryable() bool { return retryable[e.Kind] }

// Severity classifies how urgently this error needs operator attention.
func (e *ScreenshotError) Severity() Severity {
	if s, ok := severityByKind[e.Kind]; ok {
		return s
	}
	return SeverityMedium
}

// NewError builds a ScreenshotError with an optional wrapped cause.
func NewError(kind Kind, message string, cause error) *ScreenshotError {
	return &ScreenshotError{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors for errors.Is comparisons across package boundaries.
// ScreenshotError has no Is method, so a ScreenshotError matches a sentinel
// only when that sentinel is in its Cause chain.
var (
	ErrBrowserUnavailable  = errors.New(kindText[KindBrowserUnavailable])
	ErrURLLoadFailed       = errors.New(kindText[KindURLLoadFailed])
	ErrCaptureFailed       = errors.New(kindText[KindCaptureFailed])
	ErrTimeout             = errors.New(kindText[KindTimeout])
	ErrNetworkError        = errors.New(kindText[KindNetworkError])
	ErrInvalidURL          = errors.New(kindText[KindInvalidURL])
	ErrBrowserLaunchFailed = errors.New(kindText[KindBrowserLaunchFailed])
	ErrBrowserProcessDied  = errors.New(kindText[KindBrowserProcessDied])
	ErrMemoryLimitExceeded = errors.New(kindText[KindMemoryLimitExceeded])
	ErrConfigurationError  = errors.New(kindText[KindConfigurationError])
	ErrIOError             = errors.New(kindText[KindIOError])
	ErrSerializationError  = errors.New(kindText[KindSerializationError])
	ErrElementNotFound     = errors.New(kindText[KindElementNotFound])
)
