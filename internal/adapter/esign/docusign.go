package esign

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xiaot623/gogo/mediator/internal/metrics"
)

const (
	jwtGrantType   = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	jwtScope       = "signature impersonation"
	assertionTTL   = time.Hour
	tokenSafetyGap = time.Minute
)

// DocuSignConfig configures the DocuSign client.
type DocuSignConfig struct {
	IntegrationKey string
	UserID         string
	AccountID      string
	PrivateKeyPEM  string
	BaseURL        string
	OAuthBaseURL   string
	Timeout        time.Duration
}

// DocuSignClient creates envelopes through the DocuSign eSignature REST API,
// authenticating with a JWT bearer grant.
type DocuSignClient struct {
	cfg        DocuSignConfig
	key        *rsa.PrivateKey
	api        *resty.Client
	oauth      *resty.Client
	now        func() time.Time
	mu         sync.Mutex
	token      string
	tokenUntil time.Time
}

var _ Provider = (*DocuSignClient)(nil)

// NewDocuSignClient creates a new DocuSign client.
func NewDocuSignClient(cfg DocuSignConfig) (*DocuSignClient, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse docusign private key: %w", err)
	}
	return &DocuSignClient{
		cfg: cfg,
		key: key,
		api: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(cfg.Timeout),
		oauth: resty.New().
			SetBaseURL(strings.TrimRight(cfg.OAuthBaseURL, "/")).
			SetTimeout(cfg.Timeout),
		now: time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *DocuSignClient) audience() string {
	if u, err := url.Parse(c.cfg.OAuthBaseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return c.cfg.OAuthBaseURL
}

// accessToken returns a cached token or performs the JWT grant.
func (c *DocuSignClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.tokenUntil) {
		return c.token, nil
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   c.cfg.IntegrationKey,
		"sub":   c.cfg.UserID,
		"aud":   c.audience(),
		"scope": jwtScope,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign jwt assertion: %w", err)
	}

	var tok tokenResponse
	resp, err := c.oauth.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": jwtGrantType,
			"assertion":  assertion,
		}).
		SetResult(&tok).
		Post("/oauth/token")
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token endpoint error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if tok.AccessToken == "" {
		return "", errors.New("token endpoint returned no access token")
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= tokenSafetyGap {
		ttl = 2 * tokenSafetyGap
	}
	c.token = tok.AccessToken
	c.tokenUntil = now.Add(ttl - tokenSafetyGap)
	return c.token, nil
}

type signHereTab struct {
	DocumentID string `json:"documentId"`
	PageNumber string `json:"pageNumber"`
	XPosition  string `json:"xPosition"`
	YPosition  string `json:"yPosition"`
}

type signer struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	RecipientID string `json:"recipientId"`
	Tabs        struct {
		SignHereTabs []signHereTab `json:"signHereTabs"`
	} `json:"tabs"`
}

type document struct {
	DocumentBase64 string `json:"documentBase64"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension"`
	DocumentID     string `json:"documentId"`
}

type envelopeDefinition struct {
	EmailSubject string     `json:"emailSubject"`
	Status       string     `json:"status"`
	Documents    []document `json:"documents"`
	Recipients   struct {
		Signers []signer `json:"signers"`
	} `json:"recipients"`
}

func newSigner(s Signer, recipientID, y string) signer {
	out := signer{Email: s.Email, Name: s.Name, RecipientID: recipientID}
	out.Tabs.SignHereTabs = []signHereTab{{DocumentID: "1", PageNumber: "1", XPosition: "100", YPosition: y}}
	return out
}

// CreateEnvelope sends the document to both parties. Party A is recipient "1"
// and party B is recipient "2".
func (c *DocuSignClient) CreateEnvelope(ctx context.Context, req EnvelopeRequest) (string, error) {
	start := time.Now()
	id, err := c.createEnvelope(ctx, req)
	metrics.UpstreamDuration.WithLabelValues("esign").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("esign", "error").Inc()
		return "", err
	}
	metrics.UpstreamCalls.WithLabelValues("esign", "ok").Inc()
	return id, nil
}

func (c *DocuSignClient) createEnvelope(ctx context.Context, req EnvelopeRequest) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	def := envelopeDefinition{
		EmailSubject: "Settlement Agreement - Session " + req.SessionCode,
		Status:       "sent",
		Documents: []document{{
			DocumentBase64: base64.StdEncoding.EncodeToString([]byte(req.DocumentText)),
			Name:           "Settlement_Agreement_" + req.SessionCode + ".txt",
			FileExtension:  "txt",
			DocumentID:     "1",
		}},
	}
	def.Recipients.Signers = []signer{
		newSigner(req.PartyA, "1", "400"),
		newSigner(req.PartyB, "2", "500"),
	}

	var out struct {
		EnvelopeID string `json:"envelopeId"`
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(def).
		SetResult(&out).
		Post(fmt.Sprintf("/restapi/v2.1/accounts/%s/envelopes", url.PathEscape(c.cfg.AccountID)))
	if err != nil {
		return "", fmt.Errorf("create envelope: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("envelope API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if out.EnvelopeID == "" {
		return "", errors.New("envelope API returned no envelope id")
	}
	return out.EnvelopeID, nil
}
