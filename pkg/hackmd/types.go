package hackmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// NotePermissionRole controls who may read or write a note.
type NotePermissionRole string

const (
	PermissionOwner    NotePermissionRole = "owner"
	PermissionSignedIn NotePermissionRole = "signed_in"
	PermissionGuest    NotePermissionRole = "guest"
)

// CommentPermissionType controls who may comment on a note.
type CommentPermissionType string

const (
	CommentDisabled      CommentPermissionType = "disabled"
	CommentForbidden     CommentPermissionType = "forbidden"
	CommentOwners        CommentPermissionType = "owners"
	CommentSignedInUsers CommentPermissionType = "signed_in_users"
	CommentEveryone      CommentPermissionType = "everyone"
)

// NotePublishType is the published rendering mode of a note.
type NotePublishType string

const (
	PublishEdit  NotePublishType = "edit"
	PublishView  NotePublishType = "view"
	PublishSlide NotePublishType = "slide"
	PublishBook  NotePublishType = "book"
)

// TeamVisibility is the visibility of a team workspace.
type TeamVisibility string

const (
	TeamPublic  TeamVisibility = "public"
	TeamPrivate TeamVisibility = "private"
)

// Timestamp decodes HackMD time values, which are sent either as epoch
// milliseconds or as RFC 3339 strings. It encodes as epoch milliseconds.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("hackmd: invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("hackmd: invalid timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

// Team is a HackMD team workspace.
type Team struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"ownerId"`
	Name        string         `json:"name"`
	Logo        string         `json:"logo"`
	Path        string         `json:"path"`
	Description string         `json:"description"`
	HardBreaks  bool           `json:"hardBreaks"`
	Visibility  TeamVisibility `json:"visibility"`
	CreatedAt   Timestamp      `json:"createdAt"`
}

// User is the authenticated account returned by GetMe.
type User struct {
	ID       string  `json:"id"`
	Email    *string `json:"email"`
	Name     string  `json:"name"`
	UserPath string  `json:"userPath"`
	Photo    string  `json:"photo"`
	Teams    []Team  `json:"teams"`
}

// SimpleUserProfile is the short profile embedded in notes.
type SimpleUserProfile struct {
	Name      string    `json:"name"`
	UserPath  string    `json:"userPath"`
	Photo     string    `json:"photo"`
	Biography *string   `json:"biography"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Note is note metadata as returned by list endpoints.
type Note struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Tags            []string           `json:"tags"`
	LastChangedAt   Timestamp          `json:"lastChangedAt"`
	CreatedAt       Timestamp          `json:"createdAt"`
	LastChangeUser  *SimpleUserProfile `json:"lastChangeUser"`
	PublishType     NotePublishType    `json:"publishType"`
	PublishedAt     *Timestamp         `json:"publishedAt"`
	UserPath        *string            `json:"userPath"`
	TeamPath        *string            `json:"teamPath"`
	Permalink       *string            `json:"permalink"`
	ShortID         string             `json:"shortId"`
	PublishLink     string             `json:"publishLink"`
	ReadPermission  NotePermissionRole `json:"readPermission"`
	WritePermission NotePermissionRole `json:"writePermission"`
}

// SingleNote is a note with its content.
type SingleNote struct {
	Note
	Content string `json:"content"`
}

// CreateNoteOptions is the payload of CreateNote and CreateTeamNote.
// Zero fields are omitted and take the server default.
type CreateNoteOptions struct {
	Title             string                `json:"title,omitempty"`
	Content           string                `json:"content,omitempty"`
	ReadPermission    NotePermissionRole    `json:"readPermission,omitempty" validate:"omitempty,oneof=owner signed_in guest"`
	WritePermission   NotePermissionRole    `json:"writePermission,omitempty" validate:"omitempty,oneof=owner signed_in guest"`
	CommentPermission CommentPermissionType `json:"commentPermission,omitempty" validate:"omitempty,oneof=disabled forbidden owners signed_in_users everyone"`
	Permalink         string                `json:"permalink,omitempty" validate:"omitempty,max=256,excludesall= /?#"`
}

// UpdateNoteOptions is the payload of UpdateNote and UpdateTeamNote.
// Content is a pointer so that an empty document can be written.
type UpdateNoteOptions struct {
	Content         *string            `json:"content,omitempty"`
	ReadPermission  NotePermissionRole `json:"readPermission,omitempty" validate:"omitempty,oneof=owner signed_in guest"`
	WritePermission NotePermissionRole `json:"writePermission,omitempty" validate:"omitempty,oneof=owner signed_in guest"`
	Permalink       string             `json:"permalink,omitempty" validate:"omitempty,max=256,excludesall= /?#"`
}

func (o UpdateNoteOptions) empty() bool {
	return o.Content == nil && o.ReadPermission == "" && o.WritePermission == "" && o.Permalink == ""
}
