/*
Package apix provides helper functions for issuing JSON HTTP requests to the companion backend.

It wraps request construction, bearer authentication, and response decoding, translating
transport failures and server-side rejections into the application's error types so callers
always receive a discriminated result.
*/
package apix

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/proedition/mucompanion/internal/pkg/errs"
)

// errorBody mirrors the backend's JSON error body.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Request describes a single JSON API call to the backend.
type Request struct {
	// Method is the HTTP method (GET, POST, ...).
	Method string

	// URL is the absolute endpoint URL.
	URL string

	// Body is the optional request payload, marshaled as JSON when non-nil.
	Body any

	// Bearer is the optional session token sent as an Authorization header.
	Bearer string
}

// Do issues the request over client and decodes a successful JSON response into out (when non-nil).
// Transport failures map to ErrConnectionFailed; non-2xx responses map to ErrServerRejected
// carrying the server-supplied message when one is present.
func Do(ctx context.Context, client *http.Client, apiReq Request, out any) *errs.CustomError {
	var bodyReader io.Reader

	if apiReq.Body != nil {
		payload, err := json.Marshal(apiReq.Body)
		if err != nil {
			return errs.NewError(errs.ErrUnknown, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, apiReq.Method, apiReq.URL, bodyReader)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	if apiReq.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if apiReq.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiReq.Bearer)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return errs.NewError(errs.ErrConnectionFailed)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var body errorBody
		if decodeErr := json.NewDecoder(httpResp.Body).Decode(&body); decodeErr == nil && body.Message != "" {
			return errs.NewError(errs.ErrServerRejected, body.Message)
		}
		return errs.NewError(errs.ErrServerRejected, "Request failed.")
	}

	if out == nil {
		io.Copy(io.Discard, httpResp.Body)
		return nil
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	return nil
}
