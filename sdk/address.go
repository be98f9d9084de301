package sdk

import "strings"

type AddressDomain string

const (
	AddressDomainUser     AddressDomain = "user"
	AddressDomainContract AddressDomain = "contract"
	AddressDomainSystem   AddressDomain = "system"
)

// Address identifies an account, a DAO instance or an external target.
// The empty address is the zero address.
type Address string

// ZeroAddress is never a valid delegate, holder or call target.
const ZeroAddress Address = ""

// String returns the literal representation (like hive:alice) of the address.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Domain quickly checks the prefix to guess if we deal with user/contract/system domain.
func (a Address) Domain() AddressDomain {
	if strings.HasPrefix(a.String(), "system:") {
		return AddressDomainSystem
	}
	if strings.HasPrefix(a.String(), "contract:") {
		return AddressDomainContract
	}
	return AddressDomainUser
}

// Or returns a unless it is the zero address, in which case it returns fallback.
func (a Address) Or(fallback Address) Address {
	if a.IsZero() {
		return fallback
	}
	return a
}
