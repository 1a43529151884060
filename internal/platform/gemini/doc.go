// Package gemini implements service.ImageAnalyzer on top of Google's
// Gemini API.
//
// The analyzer sends the photo inline together with a prompt listing the
// service catalogue and asks for a JSON answer of the form
// {"service": "...", "description": "..."}. Transport failures, blocked
// content and malformed answers are all reported as domain.ErrUpstream;
// mapping the answer onto the catalogue is left to the service layer.
package gemini
