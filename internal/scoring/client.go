package scoring

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"hirelens/internal/auth"
	"hirelens/internal/logging"
	"hirelens/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultQuestions   = 3
	component          = "scoring"

	// AudioDataURLPrefix tags the WAV payload sent to process-audio.
	AudioDataURLPrefix = "data:audio/wav;base64,"
)

// Client talks to the scoring service.
type Client struct {
	baseURL string
	auth    *auth.Context
	logger  *slog.Logger
	policy  RetryPolicy
	timeout time.Duration

	api    *resty.Client
	frames *resty.Client
	public *resty.Client
}

type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
	policy     RetryPolicy
	timeout    time.Duration
}

// Option customizes the client.
type Option func(*clientOptions)

// WithHTTPClient overrides the base HTTP client; its transport is shared by
// every request the client makes.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *clientOptions) {
		o.policy = policy
	}
}

// WithTimeout overrides the per-request timeout (defaults to 30s).
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// NewClient constructs a scoring client for baseURL.
func NewClient(baseURL string, authCtx *auth.Context, opts ...Option) *Client {
	options := clientOptions{
		httpClient: &http.Client{},
		policy:     DefaultRetryPolicy(),
		timeout:    defaultHTTPTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}
	logger := logging.NewComponentLogger(options.logger, component)

	transport := options.httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	authedHTTP := &http.Client{
		Transport: &oauth2.Transport{Source: authCtx.TokenSource(), Base: transport},
		Timeout:   options.timeout,
	}
	publicHTTP := &http.Client{Transport: transport, Timeout: options.timeout}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	newResty := func(hc *http.Client) *resty.Client {
		return resty.NewWithClient(hc).
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetLogger(restyLogger{logger: logger}).
			OnBeforeRequest(tagRequest).
			OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
				logResponse(logger, resp)
				return nil
			})
	}

	c := &Client{
		baseURL: baseURL,
		auth:    authCtx,
		logger:  logger,
		policy:  options.policy.normalized(),
		timeout: options.timeout,
		api:     newResty(authedHTTP),
		frames:  newResty(authedHTTP),
		public:  newResty(publicHTTP),
	}
	c.policy.apply(c.api)
	return c
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AuthURL asks the service where to send the user to sign in with provider.
func (c *Client) AuthURL(ctx context.Context, provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = "google"
	}
	resp, err := c.public.R().SetContext(ctx).Get("/auth/login/" + url.PathEscape(provider))
	if err := c.check("auth url", resp, err); err != nil {
		return "", err
	}
	var payload authURLResponse
	if err := decode("auth url", resp, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.AuthURL) == "" {
		return "", services.Wrap(services.ErrInvalidResponse, component, "auth url", "response missing auth_url", nil)
	}
	return payload.AuthURL, nil
}

// Me returns the identity behind the current token.
func (c *Client) Me(ctx context.Context) (User, error) {
	resp, err := c.api.R().SetContext(ctx).Get("/auth/me")
	if err := c.check("me", resp, err); err != nil {
		return User{}, err
	}
	var user User
	if err := decode("me", resp, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Ping checks that the service answers at all. A 404 still proves reachability.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.public.R().SetContext(ctx).Get("/api/test-connection")
	if err != nil {
		return services.Wrap(services.ErrNetworkUnavailable, component, "ping", "request failed", err)
	}
	if resp.StatusCode() == http.StatusNotFound || !resp.IsError() {
		return nil
	}
	return services.Wrap(services.ErrNetworkUnavailable, component, "ping", "http "+strconv.Itoa(resp.StatusCode()), nil)
}

// Questions fetches a batch of prompts.
func (c *Client) Questions(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		count = defaultQuestions
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("count", strconv.Itoa(count)).
		Get("/api/interview/questions")
	if err := c.check("questions", resp, err); err != nil {
		return nil, err
	}
	var payload questionsResponse
	if err := decode("questions", resp, &payload); err != nil {
		return nil, err
	}
	questions := make([]string, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if strings.TrimSpace(q) != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, services.Wrap(services.ErrInvalidResponse, component, "questions", "no questions returned", nil)
	}
	return questions, nil
}

// StartSession announces a new recording attempt.
func (c *Client) StartSession(ctx context.Context, sessionID, question string) error {
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(sessionRequest{SessionID: sessionID, Question: question}).
		Post("/api/interview/start")
	return c.check("start", resp, err)
}

// RecordFrame uploads one JPEG data URL. Frames are best effort and never retried.
func (c *Client) RecordFrame(ctx context.Context, sessionID, frame, question string) error {
	resp, err := c.frames.R().
		SetContext(ctx).
		SetBody(frameRequest{SessionID: sessionID, Frame: frame, Question: question}).
		Post("/api/interview/record")
	return c.check("record", resp, err)
}

// ProcessAudio submits a WAV clip and returns the transcript.
func (c *Client) ProcessAudio(ctx context.Context, sessionID string, wav []byte, question string) (string, error) {
	body := audioRequest{
		SessionID: sessionID,
		AudioData: AudioDataURLPrefix + base64.StdEncoding.EncodeToString(wav),
		Question:  question,
	}
	resp, err := c.api.R().SetContext(ctx).SetBody(body).Post("/api/interview/process-audio")
	if err := c.check("process audio", resp, err); err != nil {
		return "", err
	}
	var payload audioResponse
	if err := decode("process audio", resp, &payload); err != nil {
		return "", err
	}
	if payload.Transcription == nil {
		return "", services.Wrap(services.ErrInvalidResponse, component, "process audio", "response missing transcription", nil)
	}
	return *payload.Transcription, nil
}

// StopSession closes the attempt and returns its scores.
func (c *Client) StopSession(ctx context.Context, sessionID, transcript string) (StopResult, error) {
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(stopRequest{SessionID: sessionID, Transcript: transcript}).
		Post("/api/interview/stop")
	if err := c.check("stop", resp, err); err != nil {
		return StopResult{}, err
	}
	var result StopResult
	if err := decode("stop", resp, &result); err != nil {
		return StopResult{}, err
	}
	if result.FinalScores == nil {
		return StopResult{}, services.Wrap(services.ErrInvalidResponse, component, "stop", "response missing final_scores", nil)
	}
	return result, nil
}

// Results returns the stored history for the signed-in user.
func (c *Client) Results(ctx context.Context) ([]ResultRecord, error) {
	resp, err := c.api.R().SetContext(ctx).Get("/api/interview/results")
	if err := c.check("results", resp, err); err != nil {
		return nil, err
	}
	var payload resultsResponse
	if err := decode("results", resp, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// StatusCode extracts the HTTP status from a scoring error, if any.
func StatusCode(err error) (int, bool) {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			return fmt.Errorf("%s %s: %w", component, op, err)
		}
		return services.Wrap(services.ErrNetworkUnavailable, component, op, "request failed", err)
	}
	if resp == nil {
		return services.Wrap(services.ErrNetworkUnavailable, component, op, "no response", nil)
	}
	code := resp.StatusCode()
	if code == http.StatusUnauthorized {
		if clearErr := c.auth.Clear(); clearErr != nil {
			logging.WarnWithContext(c.logger, "stored token could not be cleared", "token_clear_failed",
				logging.Error(clearErr),
				logging.String(logging.FieldErrorHint, "run `hirelens logout` manually"),
			)
		}
		return services.Wrap(services.ErrUnauthorized, component, op, "server rejected token", &httpStatusError{StatusCode: code, Body: resp.String()})
	}
	if !resp.IsError() {
		return nil
	}
	marker := services.ErrInvalidResponse
	if retryableStatus(code) {
		marker = services.ErrNetworkUnavailable
	}
	return services.Wrap(marker, component, op, "http "+strconv.Itoa(code), &httpStatusError{StatusCode: code, Body: resp.String()})
}

func decode(op string, resp *resty.Response, target any) error {
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return services.Wrap(services.ErrInvalidResponse, component, op, "decode response", err)
	}
	return nil
}

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// tagRequest gives every outgoing request (and every retry) its own id.
func tagRequest(_ *resty.Client, r *resty.Request) error {
	id := uuid.NewString()
	r.SetHeader(RequestIDHeader, id)
	r.SetContext(services.WithRequestID(r.Context(), id))
	return nil
}

func logResponse(logger *slog.Logger, resp *resty.Response) {
	if resp == nil || resp.Request == nil {
		return
	}
	logging.WithContext(resp.Request.Context(), logger).Debug("scoring request",
		logging.String("method", resp.Request.Method),
		logging.String("url", resp.Request.URL),
		logging.Int("status", resp.StatusCode()),
		logging.Duration("elapsed", resp.Time()),
	)
}

// restyLogger routes resty's own diagnostics into slog at debug level.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Debug("http client error", logging.String("detail", strings.TrimSpace(fmt.Sprintf(format, v...))))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Debug("http client warning", logging.String("detail", strings.TrimSpace(fmt.Sprintf(format, v...))))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug("http client debug", logging.String("detail", strings.TrimSpace(fmt.Sprintf(format, v...))))
}
