package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID. The ID keeps the
// chat_<unix-ms>_<suffix> shape so IDs sort roughly by creation time.
func NewSessionID() SessionID {
	suffix := uuid.New().String()[:5]
	return SessionID("chat_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix)
}

// Turn is one request/response exchange within a session. Seq is assigned by
// the session store and defines the total order of turns; it is never reused.
// A turn is immutable once persisted except for Title, which mirrors the
// owning session's title and may be renamed.
type Turn struct {
	SessionID SessionID
	UserID    string
	Seq       int
	Title     string
	UserText  string
	ImageRef  string
	AIText    string
	AISummary string
	CreatedAt time.Time
}

// TurnSummary is the title/summary pair derived from a diagnosis
type TurnSummary struct {
	Title   string
	Summary string
}

// ImageInput holds raw image bytes for analysis
type ImageInput struct {
	Data     []byte
	MIMEType string
}

// TurnInput is one user submission: text, image, or both.
type TurnInput struct {
	Text  string
	Image *ImageInput
}

func (x *TurnInput) HasText() bool {
	return strings.TrimSpace(x.Text) != ""
}

func (x *TurnInput) HasImage() bool {
	return x.Image != nil && len(x.Image.Data) > 0
}

// Validate rejects submissions that carry neither modality
func (x *TurnInput) Validate() error {
	if !x.HasText() && !x.HasImage() {
		return ErrEmptySubmission
	}
	return nil
}
