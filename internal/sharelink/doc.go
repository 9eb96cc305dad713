// Package sharelink issues signed, expiring download links for stored
// artifacts and renders them as QR codes.
package sharelink
