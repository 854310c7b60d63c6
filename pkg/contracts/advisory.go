package contracts

import "time"

// ReceiptIssuer identifies the judge/governance entity that issued an
// advisory or enforceable receipt.
type ReceiptIssuer struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

// ReceiptSubject binds a receipt to the tenant and artifact hashes it
// covers.
type ReceiptSubject struct {
	TenantID       string         `json:"tenantId"`
	SubjectDigests SubjectDigests `json:"subjectDigests"`
}

// SubjectDigests are the canonical hashes a receipt is bound to.
type SubjectDigests struct {
	PlanSha256   string `json:"planSha256"`
	LedgerSha256 string `json:"ledgerSha256"`
}

// ReceiptDigests holds the receipt's own content hash.
type ReceiptDigests struct {
	ReceiptSha256 string `json:"receiptSha256"`
}

// ReceiptSignature is the cryptographic binding over a receipt's
// canonical, signature-field-excluded form.
type ReceiptSignature struct {
	Algorithm string `json:"algorithm"`
	KeyID     string `json:"keyId"`
	Value     string `json:"value"`
}

// JudgeAdvisoryReceipt is advisory (dry-run, Enforceable=false) or
// enforceable (prod) governance output.
type JudgeAdvisoryReceipt struct {
	ID          string           `json:"id"`
	Issuer      ReceiptIssuer    `json:"issuer"`
	RunID       string           `json:"runId"`
	TenantID    string           `json:"tenantId"`
	Enforceable bool             `json:"enforceable"`
	Reasons     []string         `json:"reasons"`
	Subject     ReceiptSubject   `json:"subject"`
	Digests     ReceiptDigests   `json:"digests"`
	Signature   ReceiptSignature `json:"signature"`
	IssuedAt    time.Time        `json:"issuedAt"`
}

// WithoutSignature returns a copy of r with the signature field cleared,
// the projection hashed for ReceiptDigests.ReceiptSha256 and signed into
// Signature.Value.
func (r JudgeAdvisoryReceipt) WithoutSignature() JudgeAdvisoryReceipt {
	r.Signature = ReceiptSignature{}
	return r
}

// InvariantForMode checks the advisory-implies-unenforceable rule from §3
// against the run mode the receipt was minted under.
func (r JudgeAdvisoryReceipt) InvariantForMode(runMode Mode) bool {
	if runMode == ModeDryRun {
		return !r.Enforceable
	}
	return true
}
