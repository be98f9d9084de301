package contract

import (
	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

const (
	// kConfig holds the encoded governance config.
	kConfig byte = 0x01
	// kInitialized latches the one-time init.
	kInitialized byte = 0x02
	// kShares is the voting share balance per account.
	kShares byte = 0x03
	// kLoot is the non-voting balance per account.
	kLoot byte = 0x04
	// kShareSupply and kLootSupply hold the live totals.
	kShareSupply byte = 0x05
	kLootSupply  byte = 0x06
	// kDelegate stores an explicit single delegate. Absent means self.
	kDelegate byte = 0x07
	// kSplits stores a split delegation. Present means it wins over kDelegate.
	kSplits byte = 0x08
	// kCheckpointCount and kCheckpoint form the per-delegate weight history.
	kCheckpointCount byte = 0x09
	kCheckpoint      byte = 0x0a
	// kSupplyCheckpointCount and kSupplyCheckpoint form the total supply history.
	kSupplyCheckpointCount byte = 0x0b
	kSupplyCheckpoint      byte = 0x0c

	// kSeat maps a slot to its seat record, kSeatOf maps a holder to its slot.
	kSeat     byte = 0x10
	kSeatOf   byte = 0x11
	kSeatBits byte = 0x12
	kCutline  byte = 0x13

	// kProposal contains encoded Proposal records keyed by identity.
	kProposal byte = 0x20
	// kBallot is the per-voter marker on a proposal.
	kBallot byte = 0x21
	// kFutarchy contains the side pool of a proposal.
	kFutarchy byte = 0x22
	// kReceipt maps a receipt id back to proposal and stance.
	kReceipt byte = 0x23
	// kReceiptBalance and kReceiptSupply do the receipt token bookkeeping.
	kReceiptBalance byte = 0x24
	kReceiptSupply  byte = 0x25

	// kPermit counts spendable permits per identity and spender.
	kPermit byte = 0x30
	// kAllowance caps treasury spending per spender and asset.
	kAllowance byte = 0x31
	// kSale holds the standing sale per pay asset.
	kSale byte = 0x32
)

// packU64LEInline sprinkles a uint64 into dst in little-endian order so our keys stay compact.
func packU64LEInline(x uint64, dst []byte) {
	dst[0] = byte(x)
	dst[1] = byte(x >> 8)
	dst[2] = byte(x >> 16)
	dst[3] = byte(x >> 24)
	dst[4] = byte(x >> 32)
	dst[5] = byte(x >> 40)
	dst[6] = byte(x >> 48)
	dst[7] = byte(x >> 56)
}

// packU64LE appends the encoded number to dst and returns the new slice.
func packU64LE(x uint64, dst []byte) []byte {
	var b [8]byte
	packU64LEInline(x, b[:])
	return append(dst, b[:]...)
}

func singleKey(prefix byte) string {
	return string([]byte{prefix})
}

// addrKey puts the variable length address last so no length prefix is needed.
func addrKey(prefix byte, addr sdk.Address) string {
	a := addr.String()
	buf := make([]byte, 0, 1+len(a))
	buf = append(buf, prefix)
	buf = append(buf, a...)
	return string(buf)
}

func hashKey(prefix byte, h dao.Hash) string {
	var buf [1 + len(h)]byte
	buf[0] = prefix
	copy(buf[1:], h[:])
	return string(buf[:])
}

func hashAddrKey(prefix byte, h dao.Hash, addr sdk.Address) string {
	a := addr.String()
	buf := make([]byte, 0, 1+len(h)+len(a))
	buf = append(buf, prefix)
	buf = append(buf, h[:]...)
	buf = append(buf, a...)
	return string(buf)
}

func configKey() string      { return singleKey(kConfig) }
func initializedKey() string { return singleKey(kInitialized) }

func sharesKey(addr sdk.Address) string   { return addrKey(kShares, addr) }
func lootKey(addr sdk.Address) string     { return addrKey(kLoot, addr) }
func shareSupplyKey() string              { return singleKey(kShareSupply) }
func lootSupplyKey() string               { return singleKey(kLootSupply) }
func delegateKey(addr sdk.Address) string { return addrKey(kDelegate, addr) }
func splitsKey(addr sdk.Address) string   { return addrKey(kSplits, addr) }

func checkpointCountKey(delegate sdk.Address) string {
	return addrKey(kCheckpointCount, delegate)
}

// checkpointKey mixes index plus address bytes to avoid nested maps in host storage.
func checkpointKey(delegate sdk.Address, idx uint64) string {
	a := delegate.String()
	buf := make([]byte, 0, 1+8+len(a))
	buf = append(buf, kCheckpoint)
	buf = packU64LE(idx, buf)
	buf = append(buf, a...)
	return string(buf)
}

func supplyCheckpointCountKey() string { return singleKey(kSupplyCheckpointCount) }

func supplyCheckpointKey(idx uint64) string {
	var buf [9]byte
	buf[0] = kSupplyCheckpoint
	packU64LEInline(idx, buf[1:])
	return string(buf[:])
}

func seatKey(slot uint16) string {
	return string([]byte{kSeat, byte(slot), byte(slot >> 8)})
}

func seatOfKey(addr sdk.Address) string { return addrKey(kSeatOf, addr) }
func seatBitsKey() string               { return singleKey(kSeatBits) }
func cutlineKey() string                { return singleKey(kCutline) }

func proposalKey(id dao.Hash) string { return hashKey(kProposal, id) }

func ballotKey(id dao.Hash, voter sdk.Address) string {
	return hashAddrKey(kBallot, id, voter)
}

func futarchyKey(id dao.Hash) string { return hashKey(kFutarchy, id) }
func receiptKey(rid dao.Hash) string { return hashKey(kReceipt, rid) }

func receiptBalanceKey(rid dao.Hash, holder sdk.Address) string {
	return hashAddrKey(kReceiptBalance, rid, holder)
}

func receiptSupplyKey(rid dao.Hash) string { return hashKey(kReceiptSupply, rid) }

func permitKey(id dao.Hash, spender sdk.Address) string {
	return hashAddrKey(kPermit, id, spender)
}

// allowanceKey length-prefixes the asset because both parts vary in size.
func allowanceKey(spender sdk.Address, asset sdk.Asset) string {
	as, a := asset.String(), spender.String()
	buf := make([]byte, 0, 2+len(as)+len(a))
	buf = append(buf, kAllowance, byte(len(as)))
	buf = append(buf, as...)
	buf = append(buf, a...)
	return string(buf)
}

func saleKey(asset sdk.Asset) string {
	as := asset.String()
	buf := make([]byte, 0, 1+len(as))
	buf = append(buf, kSale)
	buf = append(buf, as...)
	return string(buf)
}
