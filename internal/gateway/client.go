package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"groupflow/distributor/internal/config"
	"groupflow/distributor/internal/metrics"
)

const (
	apiKeyHeader    = "apikey"
	maxErrorBodyLen = 512
)

type Timeouts struct {
	Default time.Duration
	Read    time.Duration
	Create  time.Duration
	Picture time.Duration
}

// HTTPClient is the REST implementation of Gateway.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	tracer   trace.Tracer
	timeouts Timeouts
	metrics  *metrics.Metrics
}

var _ Gateway = (*HTTPClient)(nil)

func NewHTTPClient(cfg config.GatewayConfig, m *metrics.Metrics) *HTTPClient {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		// No client-wide Timeout: every call carries its own deadline.
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
		tracer:  otel.Tracer("groupflow/distributor/gateway"),
		timeouts: Timeouts{
			Default: orDefault(cfg.Timeout, 15*time.Second),
			Read:    orDefault(cfg.ReadTimeout, 10*time.Second),
			Create:  orDefault(cfg.CreateTimeout, 20*time.Second),
			Picture: orDefault(cfg.PictureTimeout, 30*time.Second),
		},
		metrics: m,
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

type createGroupBody struct {
	Subject      string   `json:"subject"`
	Description  string   `json:"description,omitempty"`
	Participants []string `json:"participants"`
}

type createGroupResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) CreateGroup(ctx context.Context, instance string, req CreateGroupRequest) (string, error) {
	if strings.TrimSpace(req.AdminPhone) == "" {
		return "", ErrAdminPhoneRequired
	}

	participants := make([]string, 0, len(req.Participants)+1)
	participants = append(participants, req.AdminPhone)
	for _, p := range req.Participants {
		if p != req.AdminPhone {
			participants = append(participants, p)
		}
	}

	var resp createGroupResponse
	err := c.do(ctx, "create_group", c.timeouts.Create, http.MethodPost,
		"/group/create/"+url.PathEscape(instance), nil,
		createGroupBody{Subject: req.Name, Description: req.Description, Participants: participants},
		&resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create group: %w: missing id", ErrMalformedResponse)
	}
	return resp.ID, nil
}

type groupInfoResponse struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	Size         int           `json:"size"`
	Participants []Participant `json:"participants"`
}

func (c *HTTPClient) GetGroupInfo(ctx context.Context, instance, groupID string) (*GroupInfo, error) {
	var resp groupInfoResponse
	err := c.do(ctx, "get_group_info", c.timeouts.Read, http.MethodGet,
		"/group/findGroupInfos/"+url.PathEscape(instance), groupQuery(groupID), nil, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("get group info: %w: missing id", ErrMalformedResponse)
	}

	count := resp.Size
	if count == 0 {
		count = len(resp.Participants)
	}
	return &GroupInfo{
		ID:               resp.ID,
		Subject:          resp.Subject,
		ParticipantCount: count,
		Participants:     resp.Participants,
	}, nil
}

type inviteResponse struct {
	InviteURL  string `json:"inviteUrl"`
	InviteCode string `json:"inviteCode"`
}

func (c *HTTPClient) GetInviteLink(ctx context.Context, instance, groupID string) (string, error) {
	var resp inviteResponse
	err := c.do(ctx, "get_invite_link", c.timeouts.Read, http.MethodGet,
		"/group/inviteCode/"+url.PathEscape(instance), groupQuery(groupID), nil, &resp)
	if err != nil {
		return "", err
	}
	switch {
	case resp.InviteURL != "":
		return resp.InviteURL, nil
	case resp.InviteCode != "":
		return "https://chat.whatsapp.com/" + resp.InviteCode, nil
	}
	return "", fmt.Errorf("get invite link: %w: empty invite", ErrMalformedResponse)
}

func (c *HTTPClient) UpdateSubject(ctx context.Context, instance, groupID, subject string) error {
	return c.do(ctx, "update_subject", c.timeouts.Default, http.MethodPost,
		"/group/updateGroupSubject/"+url.PathEscape(instance), groupQuery(groupID),
		map[string]string{"subject": subject}, nil)
}

func (c *HTTPClient) UpdateDescription(ctx context.Context, instance, groupID, description string) error {
	return c.do(ctx, "update_description", c.timeouts.Default, http.MethodPost,
		"/group/updateGroupDescription/"+url.PathEscape(instance), groupQuery(groupID),
		map[string]string{"description": description}, nil)
}

func (c *HTTPClient) UpdateAdminOnlySetting(ctx context.Context, instance, groupID string, enabled bool) error {
	action := "not_announcement"
	if enabled {
		action = "announcement"
	}
	return c.do(ctx, "update_setting", c.timeouts.Default, http.MethodPost,
		"/group/updateSetting/"+url.PathEscape(instance), groupQuery(groupID),
		map[string]string{"action": action}, nil)
}

func (c *HTTPClient) UpdatePicture(ctx context.Context, instance, groupID, imageURL string) error {
	return c.do(ctx, "update_picture", c.timeouts.Picture, http.MethodPost,
		"/group/updateGroupPicture/"+url.PathEscape(instance), groupQuery(groupID),
		map[string]string{"image": imageURL}, nil)
}

func groupQuery(groupID string) url.Values {
	return url.Values{"groupJid": []string{groupID}}
}

// do issues one traced, rate-limited call bounded by timeout and decodes a
// JSON answer into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, op string, timeout time.Duration, method, path string, query url.Values, body, out interface{}) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	defer func() {
		c.metrics.ObserveGatewayCall(op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gateway %s: rate limit wait: %w", op, err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway %s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("gateway %s: build request: %w", op, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", c.baseURL+path),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway %s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}
