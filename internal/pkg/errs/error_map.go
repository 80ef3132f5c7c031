/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
user-visible messages and HTTP statuses for every error family.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat and Message Content Errors
	ErrMessageEmpty:     {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrMessageTooLong:   {Code: ErrMessageTooLong, Message: "Message is too long (max: %d)."},
	ErrChatNotConnected: {Code: ErrChatNotConnected, Message: "Chat is not connected."},
	ErrFloodProtection:  {Code: ErrFloodProtection, Message: "You are sending messages too fast."},
	ErrChatSendFailed:   {Code: ErrChatSendFailed, Message: "Failed to send message."},

	// 3xxx: User, Session, and Security Errors
	ErrMissingCredentials: {Code: ErrMissingCredentials, Message: "Username and password are required."},
	ErrPasswordMismatch:   {Code: ErrPasswordMismatch, Message: "Passwords do not match."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrAlreadyLoggedIn:    {Code: ErrAlreadyLoggedIn, Message: "You are already signed in.", Status: http.StatusBadRequest},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 4xxx: Transport and Connectivity Errors
	ErrConnectionFailed: {Code: ErrConnectionFailed, Message: "Connection error."},
	ErrServerRejected:   {Code: ErrServerRejected, Message: "%s"},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
