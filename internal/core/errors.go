package core

import "errors"

var (
	// ErrScanSubmission is returned when the provider refuses a submission
	ErrScanSubmission = errors.New("scan submission failed")
	// ErrScanBlocked is returned when the provider prevented the scan
	ErrScanBlocked = errors.New("scan blocked by provider")
	// ErrScanTimeout is returned when polling exhausts its budget
	ErrScanTimeout = errors.New("scan timed out")
	// ErrScanProviderResponse marks a malformed or unexpected provider response
	ErrScanProviderResponse = errors.New("unexpected scan provider response")
	// ErrAlertPersistence is returned when an alert cannot be written or exported
	ErrAlertPersistence = errors.New("alert persistence failed")
	// ErrNotification is returned when a notification cannot be delivered
	ErrNotification = errors.New("notification failed")
	// ErrNotConfigured is returned by optional channels that lack configuration
	ErrNotConfigured = errors.New("not configured")
)
