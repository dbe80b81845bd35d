package request

import "github.com/scrapeforge/crawlcore/internal/corekit"

var (
	errInvalidURL     = corekit.NewInvalidInputError("invalid or missing url", "")
	errInvalidPayload = corekit.NewInvalidInputError("GET requests cannot carry a payload", "")
)
