package dao

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"okinoko_moloch/sdk"
)

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// ActionID is the content address of an action within one instance. The epoch
// is part of the preimage, so bumping it invalidates every earlier identity.
func ActionID(instance sdk.Address, a *Action, epoch uint64) Hash {
	payloadDigest := Keccak256(a.Payload)
	w := newWriter()
	w.writeAddress(instance)
	w.writeByte(byte(a.Op))
	w.writeAddress(a.Target)
	w.writeU256(&a.Value)
	w.writeHash(payloadDigest)
	w.writeU256(&a.Nonce)
	w.writeUint64(epoch)
	return Keccak256(w.bytes())
}

// ReceiptID is the fungible token id of the vote receipts for one stance.
func ReceiptID(proposal Hash, stance Stance) Hash {
	return Keccak256(proposal[:], []byte{byte(stance)})
}

// DeriveAddress builds the address of a summoned instance from its factory and salt.
func DeriveAddress(factory sdk.Address, salt string) sdk.Address {
	w := newWriter()
	w.writeAddress(factory)
	w.writeString(salt)
	id := Keccak256(w.bytes())
	return sdk.Address("contract:" + hex.EncodeToString(id[12:]))
}
