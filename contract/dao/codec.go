package dao

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/sdk"
)

// ErrCorrupt is returned when stored or supplied bytes cannot be decoded.
var ErrCorrupt = errors.New("corrupt encoding")

type binWriter struct {
	buf bytes.Buffer
}

func newWriter() *binWriter { return &binWriter{} }

func (w *binWriter) bytes() []byte { return w.buf.Bytes() }

func (w *binWriter) writeByte(v byte) {
	w.buf.WriteByte(v)
}

func (w *binWriter) writeBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *binWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) writeInt64(v int64) {
	w.writeUint64(uint64(v))
}

func (w *binWriter) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) writeVarUint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *binWriter) writeBytes(b []byte) {
	w.writeVarUint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *binWriter) writeString(s string) {
	w.writeVarUint(uint64(len(s)))
	w.buf.WriteString(s)
}

// writeU256 stores the minimal big-endian form, so small amounts stay small.
func (w *binWriter) writeU256(v *uint256.Int) {
	w.writeBytes(v.Bytes())
}

func (w *binWriter) writeHash(h Hash) {
	w.buf.Write(h[:])
}

func (w *binWriter) writeAddress(a sdk.Address) {
	w.writeString(a.String())
}

func (w *binWriter) writeAsset(a sdk.Asset) {
	w.writeString(a.String())
}

// binReader keeps the first error it hits; every later read is a no-op
// returning zero values, and finish reports the error.
type binReader struct {
	data []byte
	pos  int
	err  error
}

func newReader(data []byte) *binReader {
	return &binReader{data: data}
}

func (r *binReader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s at offset %d", ErrCorrupt, what, r.pos)
	}
}

func (r *binReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail("unexpected EOF")
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *binReader) readByte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *binReader) readBool() bool {
	return r.readByte() == 1
}

func (r *binReader) readUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *binReader) readInt64() int64 {
	return int64(r.readUint64())
}

func (r *binReader) readUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *binReader) readVarUint() uint64 {
	if r.err != nil {
		return 0
	}
	val, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		r.fail("invalid varuint")
		return 0
	}
	r.pos += n
	return val
}

func (r *binReader) readBytes() []byte {
	l := r.readVarUint()
	if l > uint64(len(r.data)) {
		r.fail("length out of range")
		return nil
	}
	b := r.take(int(l))
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *binReader) readString() string {
	return string(r.readBytes())
}

func (r *binReader) readU256(dst *uint256.Int) {
	b := r.readBytes()
	if len(b) > 32 {
		r.fail("integer wider than 256 bits")
		return
	}
	dst.SetBytes(b)
}

func (r *binReader) readHash() Hash {
	var h Hash
	if b := r.take(len(h)); b != nil {
		copy(h[:], b)
	}
	return h
}

func (r *binReader) readAddress() sdk.Address {
	return sdk.Address(r.readString())
}

func (r *binReader) readAsset() sdk.Asset {
	return sdk.Asset(r.readString())
}

// finish fails on trailing garbage so decoders stay strict.
func (r *binReader) finish() error {
	if r.err == nil && r.pos != len(r.data) {
		r.fail("trailing bytes")
	}
	return r.err
}

// ------------------------------------------------------------------
// Records
// ------------------------------------------------------------------

// EncodeConfig serializes the governance configuration.
func EncodeConfig(cfg *Config) []byte {
	w := newWriter()
	w.writeString(cfg.Name)
	w.writeString(cfg.Symbol)
	w.writeString(cfg.URI)
	w.writeUint16(cfg.QuorumBps)
	w.writeU256(&cfg.QuorumAbsolute)
	w.writeU256(&cfg.MinYesVotes)
	w.writeU256(&cfg.ProposalThreshold)
	w.writeUint64(cfg.ProposalTTL)
	w.writeUint64(cfg.TimelockDelay)
	w.writeBool(cfg.Ragequittable)
	w.writeBool(cfg.TransfersLocked)
	w.writeU256(&cfg.AutoFutarchyParam)
	w.writeU256(&cfg.AutoFutarchyCap)
	w.writeByte(byte(cfg.RewardKind))
	w.writeBool(cfg.RewardKindPreset)
	w.writeUint64(cfg.Epoch)
	return w.bytes()
}

func DecodeConfig(data []byte) (*Config, error) {
	r := newReader(data)
	cfg := &Config{}
	cfg.Name = r.readString()
	cfg.Symbol = r.readString()
	cfg.URI = r.readString()
	cfg.QuorumBps = r.readUint16()
	r.readU256(&cfg.QuorumAbsolute)
	r.readU256(&cfg.MinYesVotes)
	r.readU256(&cfg.ProposalThreshold)
	cfg.ProposalTTL = r.readUint64()
	cfg.TimelockDelay = r.readUint64()
	cfg.Ragequittable = r.readBool()
	cfg.TransfersLocked = r.readBool()
	r.readU256(&cfg.AutoFutarchyParam)
	r.readU256(&cfg.AutoFutarchyCap)
	cfg.RewardKind = RewardKind(r.readByte())
	cfg.RewardKindPreset = r.readBool()
	cfg.Epoch = r.readUint64()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EncodeProposal serializes a proposal record.
func EncodeProposal(p *Proposal) []byte {
	w := newWriter()
	w.writeHash(p.ID)
	w.writeAddress(p.Proposer)
	w.writeInt64(p.CreatedAt)
	w.writeUint64(p.Snapshot)
	w.writeU256(&p.SupplyAtSnapshot)
	w.writeU256(&p.Tally.For)
	w.writeU256(&p.Tally.Against)
	w.writeU256(&p.Tally.Abstain)
	w.writeInt64(p.QueuedAt)
	w.writeBool(p.Executed)
	return w.bytes()
}

func DecodeProposal(data []byte) (*Proposal, error) {
	r := newReader(data)
	p := &Proposal{}
	p.ID = r.readHash()
	p.Proposer = r.readAddress()
	p.CreatedAt = r.readInt64()
	p.Snapshot = r.readUint64()
	r.readU256(&p.SupplyAtSnapshot)
	r.readU256(&p.Tally.For)
	r.readU256(&p.Tally.Against)
	r.readU256(&p.Tally.Abstain)
	p.QueuedAt = r.readInt64()
	p.Executed = r.readBool()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

func EncodeBallot(b *Ballot) []byte {
	w := newWriter()
	w.writeByte(byte(b.Stance))
	w.writeU256(&b.Weight)
	return w.bytes()
}

func DecodeBallot(data []byte) (*Ballot, error) {
	r := newReader(data)
	b := &Ballot{}
	b.Stance = Stance(r.readByte())
	r.readU256(&b.Weight)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return b, nil
}

func EncodeFutarchy(f *Futarchy) []byte {
	w := newWriter()
	w.writeBool(f.Enabled)
	w.writeByte(byte(f.Kind))
	w.writeU256(&f.Pool)
	w.writeBool(f.Resolved)
	w.writeByte(byte(f.Winner))
	w.writeU256(&f.WinningSupply)
	w.writeU256(&f.PayoutPerUnit)
	return w.bytes()
}

func DecodeFutarchy(data []byte) (*Futarchy, error) {
	r := newReader(data)
	f := &Futarchy{}
	f.Enabled = r.readBool()
	f.Kind = RewardKind(r.readByte())
	r.readU256(&f.Pool)
	f.Resolved = r.readBool()
	f.Winner = Stance(r.readByte())
	r.readU256(&f.WinningSupply)
	r.readU256(&f.PayoutPerUnit)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return f, nil
}

func EncodeReceipt(rc *Receipt) []byte {
	w := newWriter()
	w.writeHash(rc.Proposal)
	w.writeByte(byte(rc.Stance))
	return w.bytes()
}

func DecodeReceipt(data []byte) (*Receipt, error) {
	r := newReader(data)
	rc := &Receipt{}
	rc.Proposal = r.readHash()
	rc.Stance = Stance(r.readByte())
	if err := r.finish(); err != nil {
		return nil, err
	}
	return rc, nil
}

func EncodeCheckpoint(cp *Checkpoint) []byte {
	w := newWriter()
	w.writeUint64(cp.Height)
	w.writeU256(&cp.Votes)
	return w.bytes()
}

func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	r := newReader(data)
	cp := &Checkpoint{}
	cp.Height = r.readUint64()
	r.readU256(&cp.Votes)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return cp, nil
}

// EncodeSplits serializes a split delegation in its configured order.
func EncodeSplits(splits []Split) []byte {
	w := newWriter()
	w.writeVarUint(uint64(len(splits)))
	for _, s := range splits {
		w.writeAddress(s.Delegate)
		w.writeUint16(s.Bps)
	}
	return w.bytes()
}

func DecodeSplits(data []byte) ([]Split, error) {
	r := newReader(data)
	n := r.readVarUint()
	if n > MaxSplits {
		return nil, fmt.Errorf("%w: %d splits", ErrCorrupt, n)
	}
	splits := make([]Split, 0, n)
	for i := uint64(0); i < n; i++ {
		splits = append(splits, Split{Delegate: r.readAddress(), Bps: r.readUint16()})
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return splits, nil
}

func EncodeSeat(s *Seat) []byte {
	w := newWriter()
	w.writeUint16(s.Slot)
	w.writeAddress(s.Holder)
	w.writeU256(&s.Balance)
	return w.bytes()
}

func DecodeSeat(data []byte) (*Seat, error) {
	r := newReader(data)
	s := &Seat{}
	s.Slot = r.readUint16()
	s.Holder = r.readAddress()
	r.readU256(&s.Balance)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

func EncodeCutline(c *Cutline) []byte {
	w := newWriter()
	w.writeU256(&c.Balance)
	w.writeUint16(c.Slot)
	return w.bytes()
}

func DecodeCutline(data []byte) (*Cutline, error) {
	r := newReader(data)
	c := &Cutline{}
	r.readU256(&c.Balance)
	c.Slot = r.readUint16()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

func encodeSale(w *binWriter, s *Sale) {
	w.writeAsset(s.PayAsset)
	w.writeU256(&s.Price)
	w.writeU256(&s.Cap)
	w.writeBool(s.Minting)
	w.writeBool(s.Active)
	w.writeBool(s.Loot)
}

func decodeSale(r *binReader) Sale {
	var s Sale
	s.PayAsset = r.readAsset()
	r.readU256(&s.Price)
	r.readU256(&s.Cap)
	s.Minting = r.readBool()
	s.Active = r.readBool()
	s.Loot = r.readBool()
	return s
}

func EncodeSale(s *Sale) []byte {
	w := newWriter()
	encodeSale(w, s)
	return w.bytes()
}

func DecodeSale(data []byte) (*Sale, error) {
	r := newReader(data)
	s := decodeSale(r)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeAction(w *binWriter, a *Action) {
	w.writeByte(byte(a.Op))
	w.writeAddress(a.Target)
	w.writeU256(&a.Value)
	w.writeBytes(a.Payload)
	w.writeU256(&a.Nonce)
}

func decodeAction(r *binReader) Action {
	var a Action
	a.Op = sdk.Operation(r.readByte())
	a.Target = r.readAddress()
	r.readU256(&a.Value)
	a.Payload = r.readBytes()
	r.readU256(&a.Nonce)
	return a
}

func EncodeAction(a *Action) []byte {
	w := newWriter()
	encodeAction(w, a)
	return w.bytes()
}

func DecodeAction(data []byte) (*Action, error) {
	r := newReader(data)
	a := decodeAction(r)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &a, nil
}
