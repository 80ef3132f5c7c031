/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific validation, chat, session, and transport failures
both inside the client core and in responses exchanged with the companion backend.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that a JSON body or frame could not be parsed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Chat and Message Content Errors
const (
	// ErrMessageEmpty indicates that an outgoing chat message was empty or whitespace-only.
	ErrMessageEmpty = 2101

	// ErrMessageTooLong indicates that an outgoing chat message exceeded the configured maximum length.
	ErrMessageTooLong = 2102

	// ErrChatNotConnected indicates that a chat operation was attempted without a live connection.
	ErrChatNotConnected = 2103

	// ErrFloodProtection indicates that messages are being sent faster than the flood window allows.
	ErrFloodProtection = 2104

	// ErrChatSendFailed indicates that the backend rejected an outgoing chat message.
	ErrChatSendFailed = 2105
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrMissingCredentials indicates that a required username or password was empty.
	ErrMissingCredentials = 3001

	// ErrPasswordMismatch indicates that password and confirmation did not match during registration.
	ErrPasswordMismatch = 3002

	// ErrInvalidCredentials indicates that the provided username/password pair was rejected.
	ErrInvalidCredentials = 3003

	// ErrInvalidUsername indicates that the username does not meet format requirements.
	ErrInvalidUsername = 3004

	// ErrInvalidPassword indicates that the password does not meet length requirements.
	ErrInvalidPassword = 3005

	// ErrUserAlreadyExists indicates that the requested username is already taken.
	ErrUserAlreadyExists = 3006

	// ErrUserNotFound indicates that no account matches the requested user.
	ErrUserNotFound = 3007

	// ErrAlreadyLoggedIn indicates that a login or registration was attempted with an active session.
	ErrAlreadyLoggedIn = 3008

	// ErrUnauthorized indicates that the operation requires an authenticated session.
	ErrUnauthorized = 3009
)

// 4xxx: Transport and Connectivity Errors
const (
	// ErrConnectionFailed indicates that the backend could not be reached.
	ErrConnectionFailed = 4001

	// ErrServerRejected indicates that the backend returned an error message for the request.
	ErrServerRejected = 4002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)
