package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrderTicket   ErrorCode = 102
	ErrCodeMissingParameter     ErrorCode = 103

	// Transport errors (200-299)
	ErrCodeTransportRequestFailed ErrorCode = 200
	ErrCodeAccountFetchFailed     ErrorCode = 201
	ErrCodeOrderFetchFailed       ErrorCode = 202
	ErrCodeOrderPlaceFailed       ErrorCode = 203
	ErrCodeOrderCancelFailed      ErrorCode = 204

	// Streaming errors (300-399)
	ErrCodeStreamConnectFailed ErrorCode = 300
	ErrCodeStreamAuthFailed    ErrorCode = 301
	ErrCodeStreamNotConnected  ErrorCode = 302
	ErrCodeStreamSendFailed    ErrorCode = 303
	ErrCodeStreamDecodeFailed  ErrorCode = 304

	// Ledger errors (400-499)
	ErrCodeAccountNotFound ErrorCode = 400
	ErrCodeOrderNotFound   ErrorCode = 401
	ErrCodeOrderIDUnknown  ErrorCode = 402

	// Persistence errors (500-599)
	ErrCodeSnapshotWriteFailed ErrorCode = 500
	ErrCodeSnapshotReadFailed  ErrorCode = 501

	// Callback errors (600-699)
	ErrCodeCallbackFailed ErrorCode = 600
)
