package cloud

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/infrastructure/resilience"
)

const ProviderName = "docuscan-cloud"

type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// CallTimeout bounds each individual attempt; surfaced as a timeout
	// extraction error when exceeded.
	CallTimeout time.Duration

	// RequestsPerSecond/Burst pace outgoing calls client-side so retries
	// cannot stampede the backend.
	RequestsPerSecond float64
	Burst             int

	// CallObserver receives the duration and outcome of every analysis
	// call, retries included. Nil disables the hook.
	CallObserver func(duration time.Duration, err error)

	Resilience resilience.Config
}

// Client is the CloudGateway implementation for the hosted analysis
// backend. Every call goes through the resilience executor and comes back
// either as a domain result or an ExtractionError.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	callTimeout time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	executor    *resilience.Executor
	observer    func(duration time.Duration, err error)
}

func New(cfg Config) *Client {
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		callTimeout: callTimeout,
		// The outer context carries per-call deadlines; the transport
		// itself stays unbounded.
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		executor:   resilience.NewExecutor(cfg.Resilience),
		observer:   cfg.CallObserver,
	}
}

// IsAvailable reports whether the gateway has a usable session. Without an
// API key every request would come back 401, so the router skips the
// attempt entirely.
func (c *Client) IsAvailable(_ context.Context) bool {
	return c.baseURL != "" && c.apiKey != ""
}

// AnalyzeDocument sends the OCR payload for remote analysis. Page images
// are registered first; a failed upload surfaces as imageUploadFailed so
// the router can fall back to local analysis.
func (c *Client) AnalyzeDocument(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	start := time.Now()
	result, err := c.analyzeDocument(ctx, req)
	if c.observer != nil {
		c.observer(time.Since(start), err)
	}
	return result, err
}

func (c *Client) analyzeDocument(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	pageKeys, uploadErr := c.uploadPages(ctx, req)
	if uploadErr != nil {
		return nil, uploadErr
	}

	payload := buildAnalyzePayload(c.model, req, pageKeys)

	var response analyzeResponse
	err := c.executor.Execute(ctx, "analyze_document", func(callCtx context.Context) error {
		if err := c.limiter.Wait(callCtx); err != nil {
			return err
		}
		attemptCtx, cancel := context.WithTimeout(callCtx, c.callTimeout)
		defer cancel()

		response = analyzeResponse{}
		if err := c.postJSON(attemptCtx, "/v1/analyze", payload, &response, "analyze"); err != nil {
			return classifyTransportError("analyze", err)
		}
		return nil
	}, classifyForRetry)
	if err != nil {
		return nil, classifyTransportError("analyze", err)
	}

	result, err := response.toDomain()
	if err != nil {
		if _, ok := domain.AsExtractionError(err); ok {
			return nil, err
		}
		return nil, domain.NewExtractionError(domain.ErrKindInvalidResponse, err.Error(), err)
	}
	return result, nil
}

// uploadPages registers stored page images with the backend and returns the
// remote references to include in the analyze payload.
func (c *Client) uploadPages(ctx context.Context, req *domain.AnalysisRequest) ([]string, error) {
	if len(req.Pages) == 0 {
		return nil, nil
	}

	pages := make([]uploadPage, 0, len(req.Pages))
	for _, page := range req.Pages {
		pages = append(pages, uploadPage{StorageKey: page.StorageKey, MimeType: page.MimeType})
	}

	var response uploadResponse
	attemptCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.postJSON(attemptCtx, "/v1/uploads", uploadRequest{Pages: pages}, &response, "upload"); err != nil {
		classified := classifyTransportError("upload", err)
		if extractionErr, ok := domain.AsExtractionError(classified); ok && extractionErr.Kind != domain.ErrKindAuthenticationRequired {
			return nil, domain.NewExtractionError(domain.ErrKindImageUploadFailed, extractionErr.Message, classified)
		}
		return nil, classified
	}
	return response.References, nil
}
