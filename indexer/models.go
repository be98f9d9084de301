package indexer

// Amounts are stored as decimal strings, sqlite has no 256 bit integers.

// Proposal is the last known view of one proposal of one DAO.
type Proposal struct {
	ID         uint   `gorm:"primarykey"`
	DAO        string `gorm:"uniqueIndex:idx_proposal_dao_hash,priority:1;size:128;not null"`
	Hash       string `gorm:"uniqueIndex:idx_proposal_dao_hash,priority:2;size:66;not null"`
	Proposer   string `gorm:"index;size:128"`
	CreatedAt  int64
	Snapshot   uint64
	Supply     string `gorm:"not null;default:0"`
	For        string `gorm:"column:votes_for;not null;default:0"`
	Against    string `gorm:"column:votes_against;not null;default:0"`
	Abstain    string `gorm:"column:votes_abstain;not null;default:0"`
	Status     string `gorm:"index;size:16;not null"`
	EligibleAt int64
	Pool       string `gorm:"not null;default:0"`
	Winner     *uint8
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposal"
}

// Vote is one cast or cancelled ballot.
type Vote struct {
	ID        uint   `gorm:"primarykey"`
	DAO       string `gorm:"index:idx_vote_dao_hash,priority:1;size:128;not null"`
	Hash      string `gorm:"index:idx_vote_dao_hash,priority:2;size:66;not null"`
	Voter     string `gorm:"index;size:128;not null"`
	Stance    uint8  `gorm:"not null"`
	Weight    string `gorm:"not null"`
	Cancelled bool
}

// TableName returns the table name
func (Vote) TableName() string {
	return "vote"
}

// Claim is a futarchy cash out.
type Claim struct {
	ID       uint   `gorm:"primarykey"`
	DAO      string `gorm:"index;size:128;not null"`
	Hash     string `gorm:"index;size:66;not null"`
	Claimant string `gorm:"index;size:128;not null"`
	Burned   string `gorm:"not null"`
	Payout   string `gorm:"not null"`
}

// TableName returns the table name
func (Claim) TableName() string {
	return "claim"
}

// Seat mirrors the seat table, one row per occupied slot.
type Seat struct {
	ID      uint   `gorm:"primarykey"`
	DAO     string `gorm:"uniqueIndex:idx_seat_dao_slot,priority:1;size:128;not null"`
	Slot    uint16 `gorm:"uniqueIndex:idx_seat_dao_slot,priority:2;not null"`
	Holder  string `gorm:"index;size:128;not null"`
	Balance string `gorm:"not null"`
}

// TableName returns the table name
func (Seat) TableName() string {
	return "seat"
}

// Transfer is one share or loot movement. Mints have no sender, burns no recipient.
type Transfer struct {
	ID     uint   `gorm:"primarykey"`
	DAO    string `gorm:"index;size:128;not null"`
	From   string `gorm:"column:from_addr;index;size:128"`
	To     string `gorm:"column:to_addr;index;size:128"`
	Amount string `gorm:"not null"`
	Loot   bool
}

// TableName returns the table name
func (Transfer) TableName() string {
	return "transfer"
}

// MigrateModels contains a list of model objects that should have DB migrations applied
var MigrateModels = []any{
	&Proposal{},
	&Vote{},
	&Claim{},
	&Seat{},
	&Transfer{},
}
