package models

import "errors"

// ErrInvalidStatusTransition is returned when an order or commission is asked
// to move to a status its current status does not allow.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// ErrInvalidOrder marks an order whose stored fields break the intake rules.
// Settling it again cannot succeed.
var ErrInvalidOrder = errors.New("invalid order")
