package errors

import "net/http"

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:    0,
	HTTP:    http.StatusOK,
	Message: "Success",
})

// Common errors shared by all handlers.
var (
	// ErrInvalidRequest indicates a malformed request: empty query text,
	// non-positive result count, missing required fields.
	ErrInvalidRequest = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:    http.StatusBadRequest,
		Message: "Invalid request",
	})

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryResource, 1),
		HTTP:    http.StatusNotFound,
		Message: "Resource not found",
	})

	// ErrInternal indicates an unexpected server-side failure.
	ErrInternal = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryInternal, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Internal server error",
	})

	// ErrCache indicates a cache-layer failure. Request paths treat this as
	// a miss, so it only surfaces from cache-administration endpoints.
	ErrCache = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryCache, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Cache error",
	})

	// ErrTimeout indicates a request exceeded its deadline.
	ErrTimeout = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryTimeout, 1),
		HTTP:    http.StatusGatewayTimeout,
		Message: "Request timeout",
	})
)

// RAG provider failures. Each external dependency of the query pipeline has a
// distinct, user-visible error; none of them is downgraded to a partial answer.
var (
	// ErrEmbeddingUnavailable indicates the embedding provider was
	// unreachable or returned malformed output (wrong count or dimension).
	ErrEmbeddingUnavailable = Register(&Errno{
		Code:    MakeCode(ServiceRAG, CategoryUpstream, 1),
		HTTP:    http.StatusBadGateway,
		Message: "Embedding service unavailable",
	})

	// ErrRetrievalUnavailable indicates the search index failed. An empty
	// result set is not this error.
	ErrRetrievalUnavailable = Register(&Errno{
		Code:    MakeCode(ServiceRAG, CategoryUpstream, 2),
		HTTP:    http.StatusBadGateway,
		Message: "Retrieval service unavailable",
	})

	// ErrGenerationUnavailable indicates the LLM provider failed.
	ErrGenerationUnavailable = Register(&Errno{
		Code:    MakeCode(ServiceRAG, CategoryUpstream, 3),
		HTTP:    http.StatusBadGateway,
		Message: "Generation service unavailable",
	})

	// ErrIngestFailed indicates document ingestion could not complete.
	ErrIngestFailed = Register(&Errno{
		Code:    MakeCode(ServiceRAG, CategoryInternal, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Document ingestion failed",
	})
)
