// Package gateway talks to the WhatsApp messaging gateway that owns the
// actual groups. Every call is bounded by a timeout and treated as unreliable.
package gateway

import "context"

type Participant struct {
	ID    string `json:"id"`
	Admin string `json:"admin,omitempty"`
}

type GroupInfo struct {
	ID               string        `json:"id"`
	Subject          string        `json:"subject"`
	ParticipantCount int           `json:"participant_count"`
	Participants     []Participant `json:"participants"`
}

type CreateGroupRequest struct {
	Name         string
	Description  string
	Participants []string
	// AdminPhone is the owning account's number; the gateway rejects groups without it.
	AdminPhone string
}

// Gateway is the group lifecycle surface the engine depends on.
type Gateway interface {
	CreateGroup(ctx context.Context, instance string, req CreateGroupRequest) (string, error)
	GetGroupInfo(ctx context.Context, instance, groupID string) (*GroupInfo, error)
	GetInviteLink(ctx context.Context, instance, groupID string) (string, error)
	UpdateSubject(ctx context.Context, instance, groupID, subject string) error
	UpdateDescription(ctx context.Context, instance, groupID, description string) error
	UpdateAdminOnlySetting(ctx context.Context, instance, groupID string, enabled bool) error
	UpdatePicture(ctx context.Context, instance, groupID, imageURL string) error
}
