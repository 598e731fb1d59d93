package gemini

import (
	"errors"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/set-night/mindvoice/internal/domain"
	"google.golang.org/genai"
)

const statusResourceExhausted = "RESOURCE_EXHAUSTED"

// classify wraps err in a domain.BackendError so callers only branch on the
// kind. Quota covers HTTP 429 and RESOURCE_EXHAUSTED from either the genai
// or the gax error shapes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *domain.BackendError
	if errors.As(err, &be) {
		return err
	}
	kind := domain.BackendGeneric
	if isQuota(err) {
		kind = domain.BackendQuota
	}
	return &domain.BackendError{Kind: kind, Op: op, Err: err}
}

func isQuota(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return quotaStatus(apiErr.Code, apiErr.Status)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return quotaStatus(apiErrPtr.Code, apiErrPtr.Status)
	}
	var gaxErr *apierror.APIError
	if errors.As(err, &gaxErr) {
		return gaxErr.HTTPCode() == http.StatusTooManyRequests ||
			strings.EqualFold(gaxErr.Reason(), "RATE_LIMIT_EXCEEDED")
	}
	return false
}

func quotaStatus(code int, status string) bool {
	return code == http.StatusTooManyRequests || strings.EqualFold(status, statusResourceExhausted)
}
