package governance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerSigner mints a short-lived bearer JWT for every outbound
// Governance SDK call, carrying the standard JWT registered claims.
type BearerSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewBearerSigner builds a signer for HS256 bearer tokens.
func NewBearerSigner(secret []byte, issuer string, ttl time.Duration) *BearerSigner {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BearerSigner{secret: secret, issuer: issuer, ttl: ttl}
}

// Token mints a fresh bearer token for subject (the calling tenant/actor).
func (b *BearerSigner) Token(subject string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    b.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("governance: signing bearer token: %w", err)
	}
	return signed, nil
}

// HTTPClient is a thin JSON/HTTP binding over the Governance SDK contract
// described in §6. The downstream service itself is out of scope; this is
// only the client-side shape of the contract.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *BearerSigner
	evidence   *httpEvidenceService
}

// NewHTTPClient builds a client against baseURL (e.g. OMEGA_SDK_URL).
func NewHTTPClient(baseURL string, signer *BearerSigner, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &HTTPClient{baseURL: baseURL, httpClient: httpClient, signer: signer}
	c.evidence = &httpEvidenceService{client: c}
	return c
}

func (c *HTTPClient) do(ctx context.Context, method, path string, subject string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("governance: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("governance: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.signer != nil {
		token, err := c.signer.Token(subject)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("governance: request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotImplemented {
		return &ErrCapabilityMissing{Capability: path}
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("governance: %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("governance: decode response from %s: %w", path, err)
	}
	return nil
}

type invokeWireRequest struct {
	ToolID            ToolID                 `json:"toolId"`
	Input             map[string]interface{} `json:"input"`
	Tenant            string                 `json:"tenantId"`
	Correlation       string                 `json:"correlationId"`
	Tags              []string               `json:"tags"`
	Operation         string                 `json:"operation"`
	DecisionReceiptID string                 `json:"decisionReceiptId,omitempty"`
}

type invokeWireResponse struct {
	Success    bool      `json:"success"`
	Outcome    Outcome   `json:"outcome"`
	ReceiptID  string    `json:"receiptId"`
	DecidedAt  time.Time `json:"decidedAt"`
	FailureMsg string    `json:"failureMessage,omitempty"`
}

// Invoke calls POST /tools/invoke.
func (c *HTTPClient) Invoke(ctx context.Context, toolID ToolID, input map[string]interface{}, ictx InvokeContext, decisionReceiptID string) (InvokeResult, error) {
	var resp invokeWireResponse
	err := c.do(ctx, http.MethodPost, "/tools/invoke", ictx.Tenant, invokeWireRequest{
		ToolID:            toolID,
		Input:             input,
		Tenant:            ictx.Tenant,
		Correlation:       ictx.Correlation,
		Tags:              ictx.Tags,
		Operation:         ictx.Operation,
		DecisionReceiptID: decisionReceiptID,
	}, &resp)
	if err != nil {
		return InvokeResult{}, err
	}
	return InvokeResult{
		Success:    resp.Success,
		Outcome:    resp.Outcome,
		ReceiptID:  resp.ReceiptID,
		DecidedAt:  resp.DecidedAt,
		FailureMsg: resp.FailureMsg,
	}, nil
}

func (c *HTTPClient) Evidence() EvidenceService { return c.evidence }

type httpEvidenceService struct {
	client *HTTPClient
}

func (s *httpEvidenceService) Create(ctx context.Context, req EvidenceCreateRequest) (EvidenceCreateResult, error) {
	var resp EvidenceCreateResult
	err := s.client.do(ctx, http.MethodPost, "/evidence/create", req.TenantID, req, &resp)
	return resp, err
}

func (s *httpEvidenceService) Download(ctx context.Context, req EvidenceDownloadRequest) (EvidenceDownloadResult, error) {
	var resp EvidenceDownloadResult
	err := s.client.do(ctx, http.MethodPost, "/evidence/download", "", req, &resp)
	if err != nil {
		return EvidenceDownloadResult{}, err
	}
	if req.ExpectedDigest != "" && resp.Digest != req.ExpectedDigest {
		return EvidenceDownloadResult{}, fmt.Errorf("governance: evidence %s digest mismatch: expected %s, got %s", req.EvidenceID, req.ExpectedDigest, resp.Digest)
	}
	return resp, nil
}

func (s *httpEvidenceService) Verify(ctx context.Context, packHash string) (EvidenceVerifyResult, error) {
	var resp EvidenceVerifyResult
	err := s.client.do(ctx, http.MethodPost, "/evidence/verify", "", map[string]string{"packHash": packHash}, &resp)
	return resp, err
}
