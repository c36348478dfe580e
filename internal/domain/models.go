package domain

import "time"

// QuestionType enumerates the supported answer widgets.
type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionSingle   QuestionType = "single"
	QuestionMulti    QuestionType = "multi"
	QuestionDropdown QuestionType = "dropdown"
)

// Multi reports whether the type collects a set of values rather than a scalar.
func (t QuestionType) Multi() bool {
	return t == QuestionMulti
}

// Option is one selectable answer. EvaluationItemIDs carries the proposer's
// recommendation of which evaluation items this answer should map to; it is
// stripped from the stored question and materialized as Mapping rows on apply.
type Option struct {
	Label             string   `json:"label"`
	Value             string   `json:"value"`
	EvaluationItemIDs []string `json:"evaluationItemIds,omitempty"`
}

// Question is a single questionnaire entry. Questions are owned by the
// moderation workflow; end users never mutate them directly.
type Question struct {
	ID          string       `json:"id"`
	Step        int          `json:"step"`
	Type        QuestionType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Required    bool         `json:"required"`
	Options     []Option     `json:"options,omitempty"`
	ResourceIDs []string     `json:"resourceIds,omitempty"`
}

// Answer holds a user's response to one question.
type Answer struct {
	Values  []string `json:"values"`
	Comment string   `json:"comment,omitempty"`
}

// UserContext is the free-form profile captured when a session starts.
type UserContext struct {
	Name           string `json:"name"`
	JobTitle       string `json:"jobTitle,omitempty"`
	Organization   string `json:"organization,omitempty"`
	Qualifications string `json:"qualifications,omitempty"`
	Location       string `json:"location,omitempty"`
}

// Submission is one user's questionnaire session, resumable via SessionCode.
type Submission struct {
	ID          string            `json:"id"`
	SessionCode string            `json:"sessionCode"`
	UserContext UserContext       `json:"userContext"`
	Answers     map[string]Answer `json:"answers"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ResourceKind distinguishes external links from inline definitions.
type ResourceKind string

const (
	ResourceLink       ResourceKind = "link"
	ResourceDefinition ResourceKind = "definition"
)

// Resource is supporting material linked from questions.
type Resource struct {
	ID          string       `json:"id"`
	Kind        ResourceKind `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Classification is one of the six fixed evaluation dimensions.
type Classification string

const (
	ClassEffectiveness  Classification = "effectiveness"
	ClassSafety         Classification = "safety"
	ClassUsability      Classification = "usability"
	ClassEquity         Classification = "equity"
	ClassPrivacy        Classification = "privacy"
	ClassSustainability Classification = "sustainability"
)

// Classifications lists the dimensions in their fixed reporting order.
var Classifications = []Classification{
	ClassEffectiveness,
	ClassSafety,
	ClassUsability,
	ClassEquity,
	ClassPrivacy,
	ClassSustainability,
}

// EvaluationItem is static reference data: one scored dimension entry.
type EvaluationItem struct {
	ID             string         `json:"id"`
	Category       string         `json:"category"`
	Classification Classification `json:"classification"`
	Title          string         `json:"title"`
}

// Mapping links a (question, answer value) pair to an evaluation item.
type Mapping struct {
	QuestionID       string `json:"questionId"`
	AnswerValue      string `json:"answerValue"`
	EvaluationItemID string `json:"evaluationItemId"`
}

// Profile identifies a known caller; Admin gates the review workflow.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

// Questionnaire bundles the read-side dataset served to clients and fed into
// result aggregation.
type Questionnaire struct {
	Questions []Question       `json:"questions"`
	Resources []Resource       `json:"resources"`
	Items     []EvaluationItem `json:"items"`
	Mappings  []Mapping        `json:"mappings"`
}

// EvaluationSummary is the aggregated outcome of a finished session.
type EvaluationSummary struct {
	Buckets    []Bucket `json:"buckets"`
	KeyAspects []string `json:"keyAspects"`
}

// Bucket groups matched evaluation items under one classification.
type Bucket struct {
	Classification Classification   `json:"classification"`
	Items          []EvaluationItem `json:"items"`
}
