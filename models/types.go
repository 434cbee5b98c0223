package models

import "time"

// Event-session status constants
const (
	SessionScheduled = "scheduled"
	SessionActive    = "active"
	SessionEnded     = "ended"
)

// Question status constants
const (
	QuestionPending  = "pending"
	QuestionApproved = "approved"
	QuestionAnswered = "answered"
	QuestionRejected = "rejected"
)

// Poll status constants
const (
	PollDraft  = "draft"
	PollOpen   = "open"
	PollClosed = "closed"
)

// User roles
const (
	RoleAdmin    = "admin"
	RolePartner  = "partner"
	RoleAudience = "audience"
)

// Session access roles (who may moderate besides the owning partner)
const (
	AccessCollaborator = "collaborator"
	AccessPresenter    = "presenter"
)

// MaxContentLen caps question content and poll prompt length.
const MaxContentLen = 500

// Login failure reasons. Every failed login event carries exactly one of
// these; unmatched backend errors map to ReasonUnknown.
const (
	ReasonInvalidPassword   = "invalid_password"
	ReasonUserNotFound      = "user_not_found"
	ReasonEmailNotConfirmed = "email_not_confirmed"
	ReasonAccountDisabled   = "account_disabled"
	ReasonTooManyRequests   = "too_many_requests"
	ReasonUnknown           = "unknown_error"
)

// Request types

type CreateSessionRequest struct {
	Title       string `json:"title"`
	QAEnabled   bool   `json:"qa_enabled"`
	PollEnabled bool   `json:"poll_enabled"`
}

type SubmitQuestionRequest struct {
	Content     string `json:"content"`
	AuthorName  string `json:"author_name"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type ModerateQuestionRequest struct {
	Status        *string `json:"status,omitempty"`
	IsPinned      *bool   `json:"is_pinned,omitempty"`
	IsHighlighted *bool   `json:"is_highlighted,omitempty"`
	IsDisplayed   *bool   `json:"is_displayed,omitempty"`
	DisplayOrder  *int    `json:"display_order,omitempty"`
}

type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type VotePollRequest struct {
	OptionID string `json:"option_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CheckAttemptRequest struct {
	Email string `json:"email"`
}

type LogLoginEventRequest struct {
	Email         string `json:"email"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason"`
	IPAddress     string `json:"ip_address"`
}

// Response types

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

type SubmitQuestionResponse struct {
	QuestionID string `json:"question_id"`
	Status     string `json:"status"`
}

type QuestionListResponse struct {
	Questions []Question `json:"questions"`
	// LikedIDs are the question ids the requesting device has liked,
	// per the backend's own like records. The client treats this as the
	// truth for its local liked cache.
	LikedIDs []string `json:"liked_ids"`
}

type ToggleLikeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

type ToggleBroadcastResponse struct {
	QuestionID      string `json:"question_id"`
	IsBroadcasting  bool   `json:"is_broadcasting"`
	PreviousOnAirID string `json:"previous_on_air_id,omitempty"`
}

type CheckAttemptResponse struct {
	IsLocked         bool       `json:"is_locked"`
	AttemptCount     int        `json:"attempt_count"`
	LockedUntil      *time.Time `json:"locked_until,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
}

type RecordFailureResponse struct {
	AttemptCount int        `json:"attempt_count"`
	IsLocked     bool       `json:"is_locked"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
}

type LoginResponse struct {
	Token          string `json:"token"`
	SessionID      string `json:"session_id"`
	KickedSessions int    `json:"kicked_sessions"`
	User           User   `json:"user"`
}

type HeartbeatResponse struct {
	Valid bool `json:"valid"`
}

type VotePollResponse struct {
	OptionID string       `json:"option_id"`
	Options  []PollOption `json:"options"`
}

// Domain types

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Approved    bool      `json:"approved"`
	Confirmed   bool      `json:"confirmed"`
	CreatedAt   time.Time `json:"created_at"`
}

type EventSession struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	PartnerID   string     `json:"partner_id"`
	Status      string     `json:"status"`
	QAEnabled   bool       `json:"qa_enabled"`
	PollEnabled bool       `json:"poll_enabled"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Question struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Content        string    `json:"content"`
	AuthorName     *string   `json:"author_name,omitempty"`
	IsAnonymous    bool      `json:"is_anonymous"`
	Status         string    `json:"status"`
	IsPinned       bool      `json:"is_pinned"`
	IsHighlighted  bool      `json:"is_highlighted"`
	IsDisplayed    bool      `json:"is_displayed"`
	DisplayOrder   int       `json:"display_order"`
	IsBroadcasting bool      `json:"is_broadcasting"`
	LikesCount     int       `json:"likes_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type Poll struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Question  string       `json:"question"`
	Status    string       `json:"status"`
	Options   []PollOption `json:"options"`
	CreatedAt time.Time    `json:"created_at"`
}

type PollOption struct {
	ID         string `json:"id"`
	PollID     string `json:"poll_id"`
	Label      string `json:"label"`
	VotesCount int    `json:"votes_count"`
}

// LoginAttempt tracks consecutive failures per (email, ip) for lockout.
type LoginAttempt struct {
	Email        string     `json:"email"`
	IPAddress    string     `json:"ip_address"`
	AttemptCount int        `json:"attempt_count"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LoginEvent is an immutable audit record of a single attempt.
type LoginEvent struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
	Browser       string    `json:"browser"`
	OS            string    `json:"os"`
	DeviceClass   string    `json:"device_class"`
	CreatedAt     time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// RemainingSeconds is set on lockout (423) responses.
	RemainingSeconds int `json:"remaining_seconds,omitempty"`
}
