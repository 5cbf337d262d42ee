package models

import "fmt"

// InsufficientDataError reports a series too short for the requested
// computation.
type InsufficientDataError struct {
	Metric   string
	Points   int
	Required int
}

func (e *InsufficientDataError) Error() string {
	if e.Metric == "" {
		return fmt.Sprintf("insufficient data: have %d points, need %d", e.Points, e.Required)
	}
	return fmt.Sprintf("insufficient data for %s: have %d points, need %d", e.Metric, e.Points, e.Required)
}

// InvalidInputError reports a malformed or out-of-contract input.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input for %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// DeliveryError reports a failed notification delivery on one channel.
// Deliveries are best-effort: the engine logs these, it never raises them
// to alert creators.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
