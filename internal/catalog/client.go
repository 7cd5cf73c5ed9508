package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/unihorario/registration-api/internal/models"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
)

// History is a student's approved academic record as reported by the
// courses collaborator.
type History struct {
	CompletedCourses []string
	ApprovedCredits  int
}

// Completed reports whether the student has passed the given course.
func (h History) Completed(code string) bool {
	for _, c := range h.CompletedCourses {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// ClientConfig configures the courses collaborator client.
type ClientConfig struct {
	Host           string
	CoursesPath    string
	RequestTimeout time.Duration
	BreakerTimeout time.Duration
}

// Client talks to the courses collaborator over HTTP. All calls run through
// a circuit breaker so a flapping upstream degrades to fast failures instead
// of piling up blocked requests.
type Client struct {
	httpClient  *http.Client
	host        string
	coursesPath string
	breaker     *gobreaker.CircuitBreaker[[]byte]
	logger      *zap.Logger
}

// NewClient builds a catalog client from configuration.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:    "courses-ms",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Sugar().Warnw("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		host:        strings.TrimRight(cfg.Host, "/"),
		coursesPath: cfg.CoursesPath,
		breaker:     gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:      logger,
	}
}

// FetchCourses retrieves and normalizes the full course catalog.
func (c *Client) FetchCourses(ctx context.Context) ([]models.Course, error) {
	body, err := c.get(ctx, c.host+c.coursesPath)
	if err != nil {
		return nil, err
	}
	return Normalize(body), nil
}

// FetchHistory retrieves a student's approved academic record. A 404 from
// the collaborator means the student has no history yet and yields an empty
// record, not an error.
func (c *Client) FetchHistory(ctx context.Context, studentID string) (History, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/students/%s/history", c.host, studentID))
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
			return History{}, nil
		}
		return History{}, err
	}
	return parseHistory(body), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, appErrors.ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "courses service circuit open")
		}
		c.logger.Sugar().Errorw("courses request failed", "url", url, "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	return body, nil
}

// parseHistory tolerates both a bare list of approved course records and an
// object wrapping one under common keys.
func parseHistory(raw []byte) History {
	records := historyRecords(raw)
	history := History{CompletedCourses: make([]string, 0, len(records))}
	for _, record := range records {
		obj, ok := record.(map[string]interface{})
		if !ok {
			continue
		}
		code := stringField(obj, "codigo", "code", "course_code")
		if code == "" {
			continue
		}
		history.CompletedCourses = append(history.CompletedCourses, code)
		history.ApprovedCredits += intField(obj, "creditos", "credits")
	}
	return history
}

func historyRecords(raw []byte) []interface{} {
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	switch v := data.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		for _, key := range []string{"materias", "courses", "history"} {
			if list, ok := v[key].([]interface{}); ok {
				return list
			}
		}
	}
	return nil
}
