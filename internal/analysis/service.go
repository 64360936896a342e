// Package analysis runs a pitch deck through the agent and persists the memo.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ventureai/internal/agent"
	"ventureai/internal/logging"
	"ventureai/internal/notify"
	"ventureai/internal/sessions"
	"ventureai/internal/storage"
	"ventureai/internal/warehouse"
)

const CompleteMessage = "Analysis complete"

var (
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoAnalysis means the session has not been pointed at an analysis yet.
	ErrNoAnalysis = errors.New("no analysis selected for this session")
)

type SchemaEnsurer interface {
	Ensure(ctx context.Context) error
}

type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Agent interface {
	StreamQuery(ctx context.Context, userID, sessionID string, msg sessions.Content, fn func(agent.Chunk) error) (string, error)
	GetSession(ctx context.Context, userID, sessionID string) (*sessions.Session, error)
}

type Renderer interface {
	Render(doc []byte) ([]byte, error)
}

type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type RowWriter interface {
	Insert(ctx context.Context, row *warehouse.AnalysisRow) (string, error)
}

type StateUpdater interface {
	UpdateState(ctx context.Context, sessionID string, fields map[string]any) error
}

type AnalysisReader interface {
	GetAnalysis(ctx context.Context, analysisID string) (map[string]any, error)
}

type Notifier interface {
	AnalysisReady(ctx context.Context, ev notify.AnalysisEvent) (string, error)
}

var (
	_ Agent          = (*agent.App)(nil)
	_ Uploader       = (*storage.Uploader)(nil)
	_ RowWriter      = (*warehouse.Writer)(nil)
	_ StateUpdater   = (*sessions.Store)(nil)
	_ AnalysisReader = (*warehouse.Queries)(nil)
	_ Notifier       = (*notify.Notifier)(nil)
)

// Deps wires the pipeline. Investor and Reader are only needed by Ask;
// Notifier may be nil.
type Deps struct {
	Schema   SchemaEnsurer
	Fetcher  Downloader
	Analyst  Agent
	Investor Agent
	Renderer Renderer
	Uploader Uploader
	Writer   RowWriter
	Sessions StateUpdater
	Reader   AnalysisReader
	Notifier Notifier
}

type Service struct {
	Deps
	now   func() time.Time
	newID func() string
}

func NewService(d Deps) *Service {
	return &Service{Deps: d, now: time.Now, newID: uuid.NewString}
}

type Request struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	PDFURL    string `json:"pdf_url"`
	Prompt    string `json:"prompt,omitempty"`
}

func (r Request) validate() error {
	var missing []string
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(r.SessionID) == "" {
		missing = append(missing, "session_id")
	}
	if strings.TrimSpace(r.PDFURL) == "" {
		missing = append(missing, "pdf_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

type Result struct {
	Message         string `json:"message"`
	AnalysisID      string `json:"analysis_id"`
	GeneratedPDFURL string `json:"generated_pdf_url"`
}

// Generate analyzes the deck at req.PDFURL and stores the memo as a PDF, a
// warehouse row and a pointer in the session state.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.Schema.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("ensure warehouse table: %w", err)
	}

	analysisID := s.newID()
	log := logging.Logger.With().
		Str("analysis_id", analysisID).
		Str("user_id", req.UserID).
		Str("session_id", req.SessionID).
		Logger()

	pdf, err := s.Fetcher.Fetch(ctx, req.PDFURL)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	log.Info().Int("bytes", len(pdf)).Msg("downloaded pitch deck")

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = agent.DefaultAnalysisPrompt
	}
	msg := agent.UserMessage(prompt, sessions.Part{MIMEType: "application/pdf", Data: pdf})

	chunks := 0
	raw, err := s.Analyst.StreamQuery(ctx, req.UserID, req.SessionID, msg, func(agent.Chunk) error {
		chunks++
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Int("chunks", chunks).Str("raw_response", raw).Msg("agent response received")

	doc, err := agent.ParseJSONResponse(raw)
	if err != nil {
		return nil, err
	}

	row, dropped, err := warehouse.Flatten(doc)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		log.Warn().Strs("keys", dropped).Msg("memo keys without a warehouse column were dropped")
	}

	report, err := s.Renderer.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	pdfURL, err := s.Uploader.Upload(ctx, storage.ReportKey(analysisID), report, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}
	log.Info().Str("generated_pdf_url", pdfURL).Msg("report uploaded")

	row.AnalysisID = &analysisID
	row.GeneratedPDFURL = &pdfURL
	row.UserID = &req.UserID
	row.SessionID = &req.SessionID
	created := s.now().UTC().Format(time.RFC3339)
	row.CreatedAt = &created

	if _, err := s.Writer.Insert(ctx, row); err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}

	if err := s.Sessions.UpdateState(ctx, req.SessionID, map[string]any{
		"analysis_id":       analysisID,
		"generated_pdf_url": pdfURL,
	}); err != nil {
		return nil, fmt.Errorf("update session state: %w", err)
	}

	if s.Notifier != nil {
		ev := notify.AnalysisEvent{
			AnalysisID:      analysisID,
			UserID:          req.UserID,
			SessionID:       req.SessionID,
			CompanyName:     deref(row.CompanyName),
			Recommendation:  deref(row.Recommendation),
			GeneratedPDFURL: pdfURL,
		}
		if _, err := s.Notifier.AnalysisReady(ctx, ev); err != nil {
			log.Warn().Err(err).Msg("analysis notification failed")
		}
	}

	log.Info().Msg("analysis complete")
	return &Result{Message: CompleteMessage, AnalysisID: analysisID, GeneratedPDFURL: pdfURL}, nil
}

type AskRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type Answer struct {
	Answer     string `json:"answer"`
	AnalysisID string `json:"analysis_id"`
}

// Ask answers an investor question about the analysis the session points at:
// state "id_to_analyse" when set, else the session's latest "analysis_id".
func (s *Service) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		missing = append(missing, "session_id")
	}
	if strings.TrimSpace(req.Question) == "" {
		missing = append(missing, "question")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	sess, err := s.Investor.GetSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	analysisID := stateString(sess.State, "id_to_analyse")
	if analysisID == "" {
		analysisID = stateString(sess.State, "analysis_id")
	}
	if analysisID == "" {
		return nil, ErrNoAnalysis
	}

	record, err := s.Reader.GetAnalysis(ctx, analysisID)
	if err != nil && !errors.Is(err, warehouse.ErrAnalysisNotFound) {
		return nil, err
	}
	if record == nil {
		logging.Warn().Str("analysis_id", analysisID).Msg("session points at a missing analysis")
	}

	msg := agent.UserMessage(agent.InvestorQuestion(req.Question, record))
	answer, err := s.Investor.StreamQuery(ctx, req.UserID, req.SessionID, msg, nil)
	if err != nil {
		return nil, err
	}
	return &Answer{Answer: strings.TrimSpace(answer), AnalysisID: analysisID}, nil
}

func stateString(state map[string]any, key string) string {
	v, ok := state[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
