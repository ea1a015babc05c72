package domain

import "errors"

var (
	ErrInvalidRequest                = errors.New("invalid request")
	ErrInvalidJob                    = errors.New("invalid job")
	ErrInvalidStatus                 = errors.New("invalid status")
	ErrGatewayUnavailable            = errors.New("payment gateway unavailable")
	ErrInvalidSignature              = errors.New("invalid webhook signature")
	ErrDuplicateOrInvalidTransaction = errors.New("duplicate or invalid transaction")
	ErrEscrowInsufficient            = errors.New("insufficient escrow balance")
	ErrNotFound                      = errors.New("not found")
	ErrConflict                      = errors.New("conflict")
	ErrForbidden                     = errors.New("forbidden")
)
