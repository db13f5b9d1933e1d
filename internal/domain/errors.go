package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidTransition     = errors.New("invalid reservation transition")
	ErrApprovalRequired      = errors.New("approval required")
	ErrNotFound              = errors.New("not found")
	ErrInvalidID             = errors.New("invalid id")
	ErrTenantRequired        = errors.New("tenant required")
)
