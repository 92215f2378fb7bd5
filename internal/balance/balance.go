package balance

import (
	"context"
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrInvalidAddress indicates an address that is neither a 0x EVM address
// nor a sei1 bech32 address. It is permanent: callers must not retry.
var ErrInvalidAddress = errors.New("balance: invalid address")

// Provider retrieves an address's native SEI balance.
type Provider interface {
	NativeBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

var (
	evmAddressRe    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	nativeAddressRe = regexp.MustCompile(`^sei1[a-z0-9]{38}$`)
)

// IsEVMAddress reports whether address has the 0x EVM shape.
func IsEVMAddress(address string) bool {
	return evmAddressRe.MatchString(address)
}

// IsNativeAddress reports whether address has the sei1 bech32 shape.
func IsNativeAddress(address string) bool {
	return nativeAddressRe.MatchString(address)
}
