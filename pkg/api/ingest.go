package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"hookfeed/internal"
	"hookfeed/pkg/events"
	"hookfeed/pkg/storage"

	"github.com/google/go-github/v57/github"
)

const (
	// KindHeader is the generic fallback for senders other than GitHub.
	KindHeader = "X-Event-Kind"
	// KindQueryParam is consulted when neither kind header is present.
	KindQueryParam = "kind"

	pingEvent = "ping"
)

// RecordPublisher receives every record after it has been stored. It runs on
// the request path and must not wait on the message bus.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, record events.Record) error
}

// IngestHandler accepts webhook deliveries and appends one record per
// supported delivery.
type IngestHandler struct {
	Store         storage.EventStore
	Extractor     *events.Extractor
	Filters       *internal.FilterSet
	Publisher     RecordPublisher
	Secret        string
	PromoteMerges bool
	MaxBodyBytes  int64
	DebugEvents   bool
	Logger        *log.Logger
}

// ServeHTTP runs one delivery through classification, filtering, extraction
// and storage, answering with the state it ended in.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	logger := internal.WithRequestID(h.logger(), internal.RequestIDFromContext(r.Context()))

	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			internal.IncRejected(statusPayloadTooLarge)
			writeStatus(w, http.StatusRequestEntityTooLarge, StatusResponse{Status: statusPayloadTooLarge})
			return
		}
		internal.IncRejected(statusMalformedPayload)
		writeStatus(w, http.StatusBadRequest, StatusResponse{Status: statusMalformedPayload, Error: "read body failed"})
		return
	}

	kindID := resolveKindID(r)
	if h.DebugEvents {
		logger.Printf("delivery kind=%q bytes=%d body=%s", kindID, len(body), string(body))
	}

	if h.Secret != "" {
		if err := verifySignature(r, body, h.Secret); err != nil {
			logger.Printf("signature check failed: %v", err)
			internal.IncRejected(statusInvalidSignature)
			writeStatus(w, http.StatusUnauthorized, StatusResponse{Status: statusInvalidSignature})
			return
		}
	}

	if strings.EqualFold(kindID, pingEvent) {
		writeStatus(w, http.StatusOK, StatusResponse{Status: statusPong})
		return
	}

	if h.PromoteMerges && isMergedPullRequest(kindID, body) {
		kindID = string(events.KindMerge)
	}

	kind, err := events.Classify(events.RawEvent{
		KindID:     kindID,
		DeliveryID: r.Header.Get(github.DeliveryIDHeader),
		Body:       body,
	})
	internal.IncRequest(kind)
	if err != nil {
		logger.Printf("classify failed: %v", err)
		internal.IncRejected(statusUnsupportedKind)
		writeStatus(w, http.StatusUnprocessableEntity, StatusResponse{Status: statusUnsupportedKind, Error: err.Error()})
		return
	}

	if name, dropped := h.Filters.Match(kind, body); dropped {
		logger.Printf("%s delivery ignored by filter %s", kind, name)
		internal.IncIgnored(name)
		writeStatus(w, http.StatusAccepted, StatusResponse{Status: statusIgnored, Filter: name})
		return
	}

	record, err := h.extractor().Extract(kind, body)
	if err != nil {
		logger.Printf("extract %s failed: %v", kind, err)
		internal.IncRejected(statusMalformedPayload)
		writeStatus(w, http.StatusBadRequest, StatusResponse{Status: statusMalformedPayload, Error: err.Error()})
		return
	}
	record.DeliveryID = strings.TrimSpace(r.Header.Get(github.DeliveryIDHeader))

	if h.Store == nil {
		internal.IncRejected(statusStoreUnavailable)
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: statusStoreUnavailable})
		return
	}
	if err := h.Store.Append(r.Context(), record); err != nil {
		logger.Printf("append %s record failed: %v", kind, err)
		internal.IncRejected(statusStoreUnavailable)
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: statusStoreUnavailable})
		return
	}
	internal.IncStored(string(kind))
	logger.Printf("stored %s record %s for %s", kind, record.ID, record.Repository)

	if h.Publisher != nil {
		if err := h.Publisher.PublishRecord(context.WithoutCancel(r.Context()), record); err != nil {
			logger.Printf("publish record %s failed: %v", record.ID, err)
		}
	}

	writeStatus(w, http.StatusOK, StatusResponse{Status: statusSuccess, ID: record.ID})
}

func (h *IngestHandler) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}

var defaultExtractor = events.NewExtractor()

func (h *IngestHandler) extractor() *events.Extractor {
	if h.Extractor == nil {
		return defaultExtractor
	}
	return h.Extractor
}

// resolveKindID reads the kind identifier from X-GitHub-Event, then
// X-Event-Kind, then the kind query parameter.
func resolveKindID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(github.EventTypeHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.Header.Get(KindHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get(KindQueryParam))
}

// verifySignature checks X-Hub-Signature-256, falling back to the legacy
// SHA-1 X-Hub-Signature header.
func verifySignature(r *http.Request, body []byte, secret string) error {
	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(github.SHA1SignatureHeader)
	}
	if signature == "" {
		return errors.New("missing signature header")
	}
	return github.ValidateSignature(signature, body, []byte(secret))
}

type pullRequestState struct {
	Action      string `json:"action"`
	PullRequest struct {
		Merged bool `json:"merged"`
	} `json:"pull_request"`
}

func isMergedPullRequest(kindID string, body []byte) bool {
	if !strings.EqualFold(kindID, string(events.KindPullRequest)) {
		return false
	}
	var state pullRequestState
	if err := json.Unmarshal(body, &state); err != nil {
		return false
	}
	return state.Action == "closed" && state.PullRequest.Merged
}
