package contracts

// PublicationPlan records, per run, which candidate artifacts would ship
// and which would not, with opaque denial-reason keys pointing at human
// text.
type PublicationPlan struct {
	RunID       string            `json:"runId"`
	TenantID    string            `json:"tenantId"`
	Mode        Mode              `json:"mode"`
	WouldShip   []string          `json:"wouldShip"`
	WouldNotShip []string         `json:"wouldNotShip"`
	Reasons     map[string]string `json:"reasons"`
}

// ProofLedger is the run's record of side-effect intents and receipts. It
// is frozen (no further mutation permitted) once ReceiptID is attached.
type ProofLedger struct {
	RunID             string              `json:"runId"`
	TenantID          string              `json:"tenantId"`
	Mode              Mode                `json:"mode"`
	SideEffectIntents []SideEffectIntent  `json:"sideEffectIntents"`
	SideEffectReceipts []SideEffectReceipt `json:"sideEffectReceipts"`
	ReceiptID         string              `json:"receiptId,omitempty"`
	ReceiptDigest     string              `json:"receiptDigest,omitempty"`
}

// Sealed reports whether a receipt has been attached, freezing the ledger.
func (l ProofLedger) Sealed() bool {
	return l.ReceiptID != ""
}

// WithoutReceiptFields returns a copy of l with ReceiptID/ReceiptDigest
// cleared — the projection hashed as ledgerSha256 in a JudgeAdvisoryReceipt,
// since those fields are populated only after the ledger's canonical hash
// has already been computed.
func (l ProofLedger) WithoutReceiptFields() ProofLedger {
	l.ReceiptID = ""
	l.ReceiptDigest = ""
	return l
}

// WithReceipt returns a copy of l with the receipt back-reference attached.
func (l ProofLedger) WithReceipt(receiptID, receiptDigest string) ProofLedger {
	l.ReceiptID = receiptID
	l.ReceiptDigest = receiptDigest
	return l
}
