package types

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace of the relayer's registered errors.
const ModuleName = "relayer"

// errors
var (
	ErrInvalidConfig      = errorsmod.Register(ModuleName, 2, "invalid config")
	ErrUnknownNetwork     = errorsmod.Register(ModuleName, 3, "unknown network")
	ErrUnsupportedNetwork = errorsmod.Register(ModuleName, 4, "unsupported network type")
	ErrNoRoute            = errorsmod.Register(ModuleName, 5, "no queue for destination network")
	ErrMissingSecret      = errorsmod.Register(ModuleName, 6, "wallet secret not provided")
	ErrNoAnswer           = errorsmod.Register(ModuleName, 7, "no answer from sources")
	ErrInvalidRequest     = errorsmod.Register(ModuleName, 8, "invalid oracle request")
)
