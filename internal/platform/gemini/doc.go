// Package gemini provides an optional captcha hint solver backed by Google's
// Gemini API. The suggested answer is shown next to the captcha image; it is
// never submitted on the user's behalf.
package gemini
