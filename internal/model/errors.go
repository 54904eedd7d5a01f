package model

import "errors"

// ErrInvalidPlan is returned for service plans the evaluator must never see.
var ErrInvalidPlan = errors.New("invalid service plan")
