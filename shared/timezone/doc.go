// Package timezone centralizes time handling in the application timezone.
// The service calendar (daily 09:00-21:00 window, same-day rule) is evaluated
// in this location, so all slot arithmetic must go through this package
// instead of time.Now / time.Parse directly.
package timezone
