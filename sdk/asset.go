package sdk

// Asset names a treasury asset held through the host (native currency or a token).
type Asset string

const (
	// AssetNative is the host's native currency.
	AssetNative Asset = "native"
)

// String returns the raw ticker string for logging or host calls.
func (a Asset) String() string {
	return string(a)
}

// IsNative reports whether a is the host's native currency.
func (a Asset) IsNative() bool {
	return a == AssetNative
}
