// Package arr holds the reply contract shared by the Radarr and Sonarr
// acquisition clients.
//
// A call has three outcomes:
//
//   - accepted: Response.OK is true, AcquisitionID is set when the call creates something
//   - rejected: Response.OK is false and Reply carries the raw payload the service sent
//   - unavailable: the error wraps ErrUnavailable (transport failure, timeout, 5xx, bad credentials)
//
// Clients never retry; the caller decides.
package arr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golift.io/starr"
)

// ErrUnavailable indicates the service could not be reached or did not
// give a usable answer.
var ErrUnavailable = errors.New("acquisition service unavailable")

// Response is the outcome of one acquisition call.
type Response struct {
	AcquisitionID string
	OK            bool
	Reply         json.RawMessage
}

// Accepted builds a successful response, keeping payload as the reply.
func Accepted(acquisitionID string, payload any) Response {
	return Response{
		AcquisitionID: acquisitionID,
		OK:            true,
		Reply:         marshalReply(payload),
	}
}

// Rejected builds a declined response with a message reply.
func Rejected(message string) Response {
	return Response{
		OK:    false,
		Reply: marshalReply(map[string]any{"message": message, "success": false}),
	}
}

// Classify turns a starr error into a rejection or an ErrUnavailable error.
// Client errors from the service are rejections; everything else is
// unavailability.
func Classify(op string, err error) (Response, error) {
	var reqErr *starr.ReqError
	if errors.As(err, &reqErr) && isRejection(reqErr.Code) {
		return Response{OK: false, Reply: RawReply(reqErr.Body)}, nil
	}
	return Response{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func isRejection(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}

// RawReply keeps body verbatim when it is JSON and wraps it as a message
// otherwise.
func RawReply(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	return marshalReply(map[string]any{"message": string(body), "success": false})
}

func marshalReply(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
