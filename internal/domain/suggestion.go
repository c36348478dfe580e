package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SuggestionKind discriminates the payload variants.
type SuggestionKind string

const (
	SuggestAddQuestion    SuggestionKind = "add-question"
	SuggestEditQuestion   SuggestionKind = "edit-question"
	SuggestDeleteQuestion SuggestionKind = "delete-question"
	SuggestAddResource    SuggestionKind = "add-resource"
)

// SuggestionStatus is monotonic: pending may move to approved or rejected,
// never back.
type SuggestionStatus string

const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusRejected SuggestionStatus = "rejected"
)

// SuggestionPayload is the tagged union behind a suggestion. Exactly one
// concrete type exists per SuggestionKind so the apply workflow can switch
// exhaustively.
type SuggestionPayload interface {
	Kind() SuggestionKind
}

// AddQuestionPayload proposes a brand new question. NewResources are created
// during apply; ResourceIDs name pre-existing resources to link. Option-level
// evaluation item recommendations ride on the question draft.
type AddQuestionPayload struct {
	Question     Question   `json:"question"`
	NewResources []Resource `json:"newResources,omitempty"`
	ResourceIDs  []string   `json:"resourceIds,omitempty"`
}

func (AddQuestionPayload) Kind() SuggestionKind { return SuggestAddQuestion }

// EditQuestionPayload replaces an existing question's content wholesale,
// including its mappings and resource links.
type EditQuestionPayload struct {
	QuestionID   string     `json:"questionId"`
	Question     Question   `json:"question"`
	NewResources []Resource `json:"newResources,omitempty"`
	ResourceIDs  []string   `json:"resourceIds,omitempty"`
}

func (EditQuestionPayload) Kind() SuggestionKind { return SuggestEditQuestion }

// DeleteQuestionPayload removes a question and its dependent rows.
type DeleteQuestionPayload struct {
	QuestionID string `json:"questionId"`
}

func (DeleteQuestionPayload) Kind() SuggestionKind { return SuggestDeleteQuestion }

// AddResourcePayload proposes a standalone resource.
type AddResourcePayload struct {
	Resource Resource `json:"resource"`
}

func (AddResourcePayload) Kind() SuggestionKind { return SuggestAddResource }

// Suggestion is a proposed dataset change awaiting review.
type Suggestion struct {
	ID         string
	TargetID   string // question the suggestion is about, empty for add/resource
	Payload    SuggestionPayload
	Comment    string
	Status     SuggestionStatus
	ResolvedBy string
	ResolvedAt time.Time
	CreatedAt  time.Time
}

// EncodeSuggestionPayload serializes a payload variant to JSON.
func EncodeSuggestionPayload(p SuggestionPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil suggestion payload")
	}
	return json.Marshal(p)
}

// DecodeSuggestionPayload reconstructs the variant matching kind.
func DecodeSuggestionPayload(kind SuggestionKind, raw []byte) (SuggestionPayload, error) {
	switch kind {
	case SuggestAddQuestion:
		var p AddQuestionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode add-question payload: %w", err)
		}
		return p, nil
	case SuggestEditQuestion:
		var p EditQuestionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode edit-question payload: %w", err)
		}
		return p, nil
	case SuggestDeleteQuestion:
		var p DeleteQuestionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode delete-question payload: %w", err)
		}
		return p, nil
	case SuggestAddResource:
		var p AddResourcePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode add-resource payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown suggestion kind %q", kind)
	}
}

type suggestionJSON struct {
	ID         string           `json:"id"`
	Kind       SuggestionKind   `json:"kind"`
	TargetID   string           `json:"targetId,omitempty"`
	Payload    json.RawMessage  `json:"payload"`
	Comment    string           `json:"comment,omitempty"`
	Status     SuggestionStatus `json:"status"`
	ResolvedBy string           `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time       `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// MarshalJSON flattens the payload union behind a kind discriminator.
func (s Suggestion) MarshalJSON() ([]byte, error) {
	raw, err := EncodeSuggestionPayload(s.Payload)
	if err != nil {
		return nil, err
	}
	out := suggestionJSON{
		ID:         s.ID,
		Kind:       s.Payload.Kind(),
		TargetID:   s.TargetID,
		Payload:    raw,
		Comment:    s.Comment,
		Status:     s.Status,
		ResolvedBy: s.ResolvedBy,
		CreatedAt:  s.CreatedAt,
	}
	if !s.ResolvedAt.IsZero() {
		t := s.ResolvedAt
		out.ResolvedAt = &t
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the payload variant named by the kind field.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var in suggestionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	payload, err := DecodeSuggestionPayload(in.Kind, in.Payload)
	if err != nil {
		return err
	}
	s.ID = in.ID
	s.TargetID = in.TargetID
	s.Payload = payload
	s.Comment = in.Comment
	s.Status = in.Status
	s.ResolvedBy = in.ResolvedBy
	if in.ResolvedAt != nil {
		s.ResolvedAt = *in.ResolvedAt
	}
	s.CreatedAt = in.CreatedAt
	return nil
}
