package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID          string `bun:"id,pk"`
	Step        int    `bun:"step,notnull"`
	Type        string `bun:"qtype,notnull"`
	Title       string `bun:"title,notnull"`
	Description string `bun:"description,notnull,default:''"`
	Required    bool   `bun:"required,notnull,default:false"`
	Options     []byte `bun:"options,type:jsonb,notnull,default:'[]'"`
}

type resourceRow struct {
	bun.BaseModel `bun:"table:resources,alias:r"`

	ID          string    `bun:"id,pk"`
	Kind        string    `bun:"kind,notnull"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description,notnull,default:''"`
	URL         string    `bun:"url,notnull,default:''"`
	CreatedBy   string    `bun:"created_by,notnull,default:''"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type evaluationItemRow struct {
	bun.BaseModel `bun:"table:evaluation_items,alias:ei"`

	ID             string `bun:"id,pk"`
	Category       string `bun:"category,notnull"`
	Classification string `bun:"classification,notnull"`
	Title          string `bun:"title,notnull"`
}

type mappingRow struct {
	bun.BaseModel `bun:"table:question_mappings,alias:qm"`

	QuestionID  string `bun:"question_id,pk"`
	AnswerValue string `bun:"answer_value,pk"`
	ItemID      string `bun:"item_id,pk"`
}

type resourceLinkRow struct {
	bun.BaseModel `bun:"table:question_resources,alias:qr"`

	QuestionID string `bun:"question_id,pk"`
	ResourceID string `bun:"resource_id,pk"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID          string    `bun:"id,pk"`
	SessionCode string    `bun:"session_code,notnull"`
	UserContext []byte    `bun:"user_context,type:jsonb,notnull,default:'{}'"`
	Answers     []byte    `bun:"answers,type:jsonb,notnull,default:'{}'"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

type suggestionRow struct {
	bun.BaseModel `bun:"table:suggestions,alias:sg"`

	ID         string     `bun:"id,pk"`
	Kind       string     `bun:"kind,notnull"`
	TargetID   string     `bun:"target_id,notnull,default:''"`
	Payload    []byte     `bun:"payload,type:jsonb,notnull"`
	Comment    string     `bun:"comment,notnull,default:''"`
	Status     string     `bun:"status,notnull,default:'pending'"`
	ResolvedBy string     `bun:"resolved_by,notnull,default:''"`
	ResolvedAt *time.Time `bun:"resolved_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
}

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID    string `bun:"id,pk"`
	Name  string `bun:"name,notnull"`
	Admin bool   `bun:"admin,notnull,default:false"`
}
