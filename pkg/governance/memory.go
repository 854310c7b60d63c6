package governance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEvidenceService is an in-process EvidenceService used by tests and
// the dev CLI. It supports Download (unlike a stripped-down SDK lacking
// that capability) and fails closed on digest mismatch.
type MemoryEvidenceService struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryEvidenceService builds an empty in-memory evidence store.
func NewMemoryEvidenceService() *MemoryEvidenceService {
	return &MemoryEvidenceService{records: make(map[string][]byte)}
}

func (s *MemoryEvidenceService) Create(_ context.Context, req EvidenceCreateRequest) (EvidenceCreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.records[id] = append([]byte(nil), req.Content...)
	sum := sha256.Sum256(req.Content)
	return EvidenceCreateResult{
		EvidenceID: id,
		Digest:     hex.EncodeToString(sum[:]),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (s *MemoryEvidenceService) Download(_ context.Context, req EvidenceDownloadRequest) (EvidenceDownloadResult, error) {
	s.mu.RLock()
	content, ok := s.records[req.EvidenceID]
	s.mu.RUnlock()
	if !ok {
		return EvidenceDownloadResult{}, fmt.Errorf("governance: unknown evidence id %s", req.EvidenceID)
	}

	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])
	if req.ExpectedDigest != "" && digest != req.ExpectedDigest {
		return EvidenceDownloadResult{}, fmt.Errorf("governance: evidence %s digest mismatch: expected %s, got %s", req.EvidenceID, req.ExpectedDigest, digest)
	}
	return EvidenceDownloadResult{Content: content, Digest: digest}, nil
}

func (s *MemoryEvidenceService) Verify(_ context.Context, packHash string) (EvidenceVerifyResult, error) {
	if packHash == "" {
		return EvidenceVerifyResult{IsValid: false, Verdict: "empty_pack_hash"}, nil
	}
	return EvidenceVerifyResult{IsValid: true, Verdict: "ok"}, nil
}

// MemorySDK is a fully in-process SDK: "keon.decide" approves any
// well-formed request, "keon.execute" always succeeds. It is meant for
// tests and local development, never for production traffic.
type MemorySDK struct {
	evidence *MemoryEvidenceService
	// Approve, when non-nil, overrides the decide outcome for every call —
	// tests use this to exercise the Decision-Denied gate path.
	Approve *bool
}

// NewMemorySDK builds an in-process SDK with its own evidence store.
func NewMemorySDK() *MemorySDK {
	return &MemorySDK{evidence: NewMemoryEvidenceService()}
}

func (s *MemorySDK) Invoke(_ context.Context, toolID ToolID, _ map[string]interface{}, _ InvokeContext, decisionReceiptID string) (InvokeResult, error) {
	switch toolID {
	case ToolDecide:
		approved := true
		if s.Approve != nil {
			approved = *s.Approve
		}
		outcome := OutcomeApproved
		if !approved {
			outcome = OutcomeDenied
		}
		return InvokeResult{
			Success:   true,
			Outcome:   outcome,
			ReceiptID: uuid.NewString(),
			DecidedAt: time.Now().UTC(),
		}, nil
	case ToolExecute:
		return InvokeResult{
			Success:   true,
			Outcome:   OutcomeApproved,
			ReceiptID: decisionReceiptID,
			DecidedAt: time.Now().UTC(),
		}, nil
	default:
		return InvokeResult{}, fmt.Errorf("governance: unknown tool id %q", toolID)
	}
}

func (s *MemorySDK) Evidence() EvidenceService { return s.evidence }
