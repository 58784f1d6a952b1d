package model

import "time"

// WorkStatus is the linear status path of a background work item.
type WorkStatus string

const (
	StatusPending    WorkStatus = "pending"
	StatusProcessing WorkStatus = "processing"
	StatusCompleted  WorkStatus = "completed"
	StatusFailed     WorkStatus = "failed"
)

// Story is printed once its delay has elapsed.
type Story struct {
	ID           string     `json:"id"           db:"id"`
	Title        string     `json:"title"        db:"title"`
	Content      string     `json:"content"      db:"content"`
	PublishAfter int        `json:"publishAfter" db:"publish_after"` // seconds
	Status       WorkStatus `json:"status"       db:"status"`
	PrintedAt    *time.Time `json:"printedAt"    db:"printed_at"`
	Error        string     `json:"error"        db:"error_message"` // set when Status is failed
	CreatedAt    time.Time  `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt"    db:"updated_at"`
}

// PDFDocument is an uploaded PDF whose text is extracted in the background.
type PDFDocument struct {
	ID            string     `json:"id"            db:"id"`
	Title         string     `json:"title"         db:"title"`
	FilePath      string     `json:"-"             db:"file_path"`
	OriginalName  string     `json:"originalName"  db:"original_name"`
	ProcessAfter  int        `json:"processAfter"  db:"process_after"` // seconds
	Status        WorkStatus `json:"status"        db:"status"`
	ExtractedText string     `json:"extractedText" db:"extracted_text"`
	CreatedAt     time.Time  `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt"     db:"updated_at"`
}

type TaskStatus string

const (
	TaskScheduled TaskStatus = "scheduled"
	TaskRunning   TaskStatus = "running"
	TaskDone      TaskStatus = "done"
	TaskFailed    TaskStatus = "failed"
)

// ScheduledTask is the scheduler's durable record of one delayed job.
type ScheduledTask struct {
	ID        string     `db:"id"`
	Name      string     `db:"name"`
	Payload   []byte     `db:"payload"`
	RunAt     time.Time  `db:"run_at"`
	Status    TaskStatus `db:"status"`
	Attempts  int        `db:"attempts"`
	LastError string     `db:"last_error"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}
