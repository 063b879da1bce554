// Package errmap turns failures from the vendor API and the local machine
// into sentences fit for the chat window.
package errmap

import (
	"errors"
	"strings"

	"google.golang.org/genai"

	"eryon/internal/geo"
)

const (
	MsgDefault             = "An unexpected error occurred. Please try again later."
	MsgLocationDenied      = "Location permission denied. Please enable location services in your settings to use Maps Search."
	MsgLocationUnavailable = "Your location could not be determined. Please check your network or try again."
	MsgLocationTimeout     = "The request to get your location timed out. Please try again."
	MsgVideoKey            = "API Key error. The selected key may not have access to the Video API. Please re-select your API key."
	MsgInvalidKey          = "Your API Key is not valid. Please check your configuration."
	MsgQuota               = "You have exceeded your API quota. Please check your billing account or try again later."
	MsgSafety              = "The request was blocked due to the safety policy. Please modify your prompt and try again."
	MsgNetwork             = "A network error occurred. Please check your internet connection and try again."
	MsgBadRequest          = "There was a problem with your request (Bad Request). Please check your input and try again."
	MsgServer              = "The AI server encountered an internal error. Please try again in a few moments."
)

type rule struct {
	needles  []string
	msg      string
	resetKey bool
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{needles: []string{"requested entity was not found"}, msg: MsgVideoKey, resetKey: true},
	{needles: []string{"api key not valid"}, msg: MsgInvalidKey},
	{needles: []string{"quota", "resource has been exhausted"}, msg: MsgQuota},
	{needles: []string{"safety policy"}, msg: MsgSafety},
	{needles: []string{"failed to fetch", "network"}, msg: MsgNetwork},
	{needles: []string{"400"}, msg: MsgBadRequest},
	{needles: []string{"500", "internal error"}, msg: MsgServer},
}

// Friendly maps err to a user-facing message. resetVideoKey is set when the
// selected video key should be discarded.
func Friendly(err error) (msg string, resetVideoKey bool) {
	if err == nil {
		return "", false
	}

	var le *geo.LocationError
	if errors.As(err, &le) {
		switch le.Code {
		case geo.PermissionDenied:
			return MsgLocationDenied, false
		case geo.PositionUnavailable:
			return MsgLocationUnavailable, false
		case geo.Timeout:
			return MsgLocationTimeout, false
		}
	}

	text := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(text, n) {
				return r.msg, r.resetKey
			}
		}
	}

	if code, ok := apiCode(err); ok {
		switch {
		case code == 429:
			return MsgQuota, false
		case code == 400:
			return MsgBadRequest, false
		case code >= 500:
			return MsgServer, false
		}
	}

	return MsgDefault, false
}

func apiCode(err error) (int, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, true
	}
	return 0, false
}
