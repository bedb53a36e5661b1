package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FetchError is the structured error every provider fetcher converts
// vendor failures into at the fetch boundary. The core never lets an
// unclassified error escape into a result.
type FetchError struct {
	Reason  ReasonCode
	Message string
}

func (e *FetchError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return e.Message
}

// Errf builds a FetchError with a formatted message.
func Errf(reason ReasonCode, format string, args ...any) *FetchError {
	return &FetchError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ClassifyResult maps one settled fetch outcome to a ProviderResult.
//
// A nil error with usable data is ok. A nil error with an empty value is
// the provider affirmatively reporting "nothing found" (e.g. no session
// files on disk) and classifies as no-data without a reason. Structured
// errors keep their reason; no_credentials and token_expired are routine
// "not logged in" states and classify as no-data rather than error.
func ClassifyResult(usage *Usage, err error, now time.Time) ProviderResult {
	if err == nil {
		if usage.Empty() {
			return ProviderResult{
				Status:  StatusNoData,
				Display: "no data",
			}
		}
		return ProviderResult{
			Status:  StatusOK,
			Data:    usage,
			Display: okDisplay(usage, now),
		}
	}

	reason := ReasonUnknown
	var fe *FetchError
	if errors.As(err, &fe) {
		reason = fe.Reason
	} else {
		// Legacy fallback for errors that escaped the fetch boundary
		// unstructured. Structured FetchErrors are the supported path.
		reason = guessReason(err.Error())
	}

	if reason == ReasonNoCredentials || reason == ReasonTokenExpired {
		return ProviderResult{
			Status:  StatusNoData,
			Reason:  reason,
			Display: fmt.Sprintf("no data (%s)", reason),
		}
	}

	return ProviderResult{
		Status:       StatusError,
		Reason:       reason,
		ErrorMessage: err.Error(),
		Display:      fmt.Sprintf("error (%s): %s", reason, err.Error()),
	}
}

// okDisplay is the renderer-independent one-line summary for a successful
// fetch: the same window lines the table shows, most constraining first.
func okDisplay(u *Usage, now time.Time) string {
	lines := usageLines(u, now)
	if len(lines) == 0 {
		return "ok"
	}
	return strings.Join(lines, ", ")
}

func guessReason(msg string) ReasonCode {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "credential") || strings.Contains(lower, "no such file") ||
		strings.Contains(lower, "not logged in"):
		return ReasonNoCredentials
	case strings.Contains(lower, "expired"):
		return ReasonTokenExpired
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") ||
		strings.Contains(lower, "forbidden") || strings.Contains(lower, "unauthorized"):
		return ReasonAuthFailed
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline") ||
		strings.Contains(lower, "abort"):
		return ReasonTimeout
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection") ||
		strings.Contains(lower, "fetch failed"):
		return ReasonNetworkError
	default:
		return ReasonUnknown
	}
}
