// Package patentsite implements resource.Client for the patent document site.
//
// Each call builds its own cookie jar from the task's SessionState, so
// concurrent tasks never share cookies. The flow is: verify form, captcha
// image, search with the captcha answer, unlock via the securepdf form, and
// finally stream the PDF into local storage.
package patentsite
