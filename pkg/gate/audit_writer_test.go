package gate

import (
	"context"
	"testing"
	"time"

	"github.com/keon-labs/marketops/pkg/governance"
)

func TestAuditWriter_WritesReceiptAndMaterializesPack(t *testing.T) {
	writer := NewAuditWriter(governance.NewMemoryEvidenceService())

	result, err := writer.WriteReceiptAndPack(context.Background(), DecisionReceipt{
		ReceiptID:    "receipt-1",
		ArtifactID:   "artifact-1",
		TenantID:     "keon-public",
		Outcome:      "Approved",
		DecidedAtUtc: time.Now().UTC(),
	}, nil, nil)
	if err != nil {
		t.Fatalf("WriteReceiptAndPack: %v", err)
	}
	if result.EvidencePackID == "" {
		t.Error("expected an evidence pack id")
	}
	if result.EvidencePackPath == "" {
		t.Error("expected a materialized evidence pack path when Download is available")
	}
}
