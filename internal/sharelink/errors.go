package sharelink

import "errors"

var (
	// ErrInvalidLink indicates the token is malformed, has a bad signature or
	// was not issued as a download link.
	ErrInvalidLink = errors.New("invalid download link")

	// ErrExpiredLink indicates the link's lifetime has passed.
	ErrExpiredLink = errors.New("download link has expired")
)
