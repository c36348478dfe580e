package app

import (
	"context"
	"fmt"
	"strings"

	"evalform-service/internal/domain"
)

// SummaryGenerator produces a narrative from a prompt; backed by an LLM
// gateway in production and stubbed in tests.
type SummaryGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Report pairs the deterministic aggregate with an optional narrative.
type Report struct {
	SessionCode string                   `json:"sessionCode"`
	UserContext domain.UserContext       `json:"userContext"`
	Summary     domain.EvaluationSummary `json:"summary"`
	Narrative   string                   `json:"narrative,omitempty"`
}

// ReportService builds the end-of-session report. When no generator is
// configured the report carries the plain aggregate only.
type ReportService struct {
	sessions  *SessionService
	generator SummaryGenerator
}

func NewReportService(sessions *SessionService, generator SummaryGenerator) *ReportService {
	return &ReportService{sessions: sessions, generator: generator}
}

// Build resumes the session, aggregates its answers, and, if a generator is
// configured, asks it for a narrative. A generator failure is an upstream
// error; nothing is retried automatically.
func (s *ReportService) Build(ctx context.Context, code string) (Report, error) {
	sub, err := s.sessions.Resume(ctx, code)
	if err != nil {
		return Report{}, err
	}
	summary, err := s.sessions.Preview(ctx, sub.Answers)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		SessionCode: sub.SessionCode,
		UserContext: sub.UserContext,
		Summary:     summary,
	}
	if s.generator == nil {
		return report, nil
	}

	narrative, err := s.generator.Generate(ctx, summaryPrompt(sub.UserContext, summary))
	if err != nil {
		return Report{}, fmt.Errorf("generate narrative: %w", err)
	}
	report.Narrative = narrative
	return report, nil
}

func summaryPrompt(user domain.UserContext, summary domain.EvaluationSummary) string {
	var b strings.Builder
	b.WriteString("Write a short narrative summary of this evaluation result.\n")
	if user.Name != "" {
		fmt.Fprintf(&b, "Respondent: %s", user.Name)
		if user.JobTitle != "" {
			fmt.Fprintf(&b, ", %s", user.JobTitle)
		}
		if user.Organization != "" {
			fmt.Fprintf(&b, " (%s)", user.Organization)
		}
		b.WriteString("\n")
	}
	if len(summary.KeyAspects) > 0 {
		fmt.Fprintf(&b, "Key aspects: %s\n", strings.Join(summary.KeyAspects, ", "))
	}
	for _, bucket := range summary.Buckets {
		if len(bucket.Items) == 0 {
			continue
		}
		titles := make([]string, 0, len(bucket.Items))
		for _, item := range bucket.Items {
			titles = append(titles, item.Title)
		}
		fmt.Fprintf(&b, "%s: %s\n", bucket.Classification, strings.Join(titles, "; "))
	}
	return b.String()
}
