package metrics

import "time"

// BridgeMetrics provides observability for the protocol bridge.
//
// This interface is optional - if not provided to the bridge, a no-op
// implementation is used.
type BridgeMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - operation: "CheckFileInfo", "GetFile", "PutFile", "GrantAccess", ...
	//   - status: HTTP status code sent to the client
	//   - duration: Time taken to process the request
	RecordRequest(operation string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight gauge for operation.
	RecordRequestStart(operation string)

	// RecordRequestEnd decrements the in-flight gauge for operation.
	RecordRequestEnd(operation string)

	// RecordBytesTransferred records file bytes moved through the bridge.
	//
	// Parameters:
	//   - direction: "read" (GetFile) or "write" (PutFile)
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// RecordTokenIssued increments the issued token counter.
	RecordTokenIssued()

	// RecordTokenRevoked increments the revoked token counter.
	RecordTokenRevoked()

	// RecordTokensSwept adds n to the expired-and-swept counter.
	RecordTokensSwept(n int)

	// RecordRateLimited increments the rejected-by-rate-limit counter.
	RecordRateLimited(operation string)

	// ObserveLiveTokens registers a callback reporting the registry size.
	ObserveLiveTokens(fn func() int)
}

// NewNoopBridgeMetrics returns a BridgeMetrics that discards everything.
func NewNoopBridgeMetrics() BridgeMetrics {
	return noopBridgeMetrics{}
}

type noopBridgeMetrics struct{}

func (noopBridgeMetrics) RecordRequest(string, int, time.Duration)  {}
func (noopBridgeMetrics) RecordRequestStart(string)                 {}
func (noopBridgeMetrics) RecordRequestEnd(string)                   {}
func (noopBridgeMetrics) RecordBytesTransferred(string, int64)      {}
func (noopBridgeMetrics) RecordTokenIssued()                        {}
func (noopBridgeMetrics) RecordTokenRevoked()                       {}
func (noopBridgeMetrics) RecordTokensSwept(int)                     {}
func (noopBridgeMetrics) RecordRateLimited(string)                  {}
func (noopBridgeMetrics) ObserveLiveTokens(func() int)              {}
