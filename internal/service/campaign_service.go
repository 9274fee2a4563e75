package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/metrics"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
	"groupflow/distributor/pkg/phone"
)

const maxSlugAttempts = 50

type CreateInstanceInput struct {
	Name        string
	PhoneNumber string
}

type CreateCampaignInput struct {
	InstanceID         uuid.UUID
	Name               string
	GroupNameTemplate  string
	GroupDescription   string
	GroupImageURL      string
	AdminOnly          bool
	MaxMembersPerGroup int
	AutoCreateGroups   *bool
	Status             model.CampaignStatus
}

type CampaignStats struct {
	CampaignID        uuid.UUID `json:"campaign_id"`
	TotalGroups       int       `json:"total_groups"`
	LiveGroups        int       `json:"live_groups"`
	RegisteredMembers int64     `json:"registered_members"`
	CurrentMembers    int       `json:"current_members"`
	TotalCapacity     int       `json:"total_capacity"`
	FillPercent       float64   `json:"fill_percent"`
	// DistributionGroup is the number of the group receiving signups, if any.
	DistributionGroup *int `json:"distribution_group,omitempty"`
}

// CampaignService covers operator-facing campaign, instance, and group management.
type CampaignService interface {
	CreateInstance(ctx context.Context, in CreateInstanceInput) (*model.Instance, error)
	ListInstances(ctx context.Context) ([]model.Instance, error)

	CreateCampaign(ctx context.Context, ownerID uuid.UUID, in CreateCampaignInput) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, ownerID uuid.UUID) ([]model.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) (*model.Campaign, error)
	Stats(ctx context.Context, id uuid.UUID) (*CampaignStats, error)

	ListGroups(ctx context.Context, campaignID uuid.UUID) ([]model.Group, error)
	// CreateGroup opens the campaign's next group by hand. It only takes over
	// distribution when no other group holds it.
	CreateGroup(ctx context.Context, campaignID uuid.UUID) (*model.Group, error)
	RefreshInviteLink(ctx context.Context, campaignID, groupID uuid.UUID) (*model.Group, error)
	ListLogs(ctx context.Context, campaignID uuid.UUID, filter repository.LogFilter) ([]model.Log, error)
}

type campaignService struct {
	campaigns     repository.CampaignRepository
	groups        repository.GroupRepository
	members       repository.MemberRepository
	instances     repository.InstanceRepository
	logs          repository.LogRepository
	gw            gateway.Gateway
	provisioner   *groupProvisioner
	recorder      *ActivityRecorder
	logger        *zap.Logger
	defaultRegion string
}

var _ CampaignService = (*campaignService)(nil)

func NewCampaignService(
	campaigns repository.CampaignRepository,
	groups repository.GroupRepository,
	members repository.MemberRepository,
	instances repository.InstanceRepository,
	logs repository.LogRepository,
	gw gateway.Gateway,
	recorder *ActivityRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
	defaultRegion string,
) CampaignService {
	return &campaignService{
		campaigns: campaigns,
		groups:    groups,
		members:   members,
		instances: instances,
		logs:      logs,
		gw:        gw,
		provisioner: &groupProvisioner{
			gw:        gw,
			groups:    groups,
			campaigns: campaigns,
			recorder:  recorder,
			metrics:   m,
			logger:    logger,
		},
		recorder:      recorder,
		logger:        logger,
		defaultRegion: defaultRegion,
	}
}

func (s *campaignService) CreateInstance(ctx context.Context, in CreateInstanceInput) (*model.Instance, error) {
	instance := &model.Instance{
		Name:   strings.TrimSpace(in.Name),
		Status: model.InstanceStatusConnected,
	}
	if in.PhoneNumber != "" {
		number, err := phone.Normalize(in.PhoneNumber, s.defaultRegion)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
		}
		instance.PhoneNumber = number
	}
	if err := s.instances.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return instance, nil
}

func (s *campaignService) ListInstances(ctx context.Context) ([]model.Instance, error) {
	return s.instances.List(ctx)
}

func (s *campaignService) CreateCampaign(ctx context.Context, ownerID uuid.UUID, in CreateCampaignInput) (*model.Campaign, error) {
	if !model.ValidGroupNameTemplate(in.GroupNameTemplate) {
		return nil, ErrInvalidTemplate
	}
	if in.MaxMembersPerGroup == 0 {
		in.MaxMembersPerGroup = model.DefaultMaxMembersInGroup
	}
	if in.MaxMembersPerGroup < MinGroupSizeFloor || in.MaxMembersPerGroup > maxGroupCapacity {
		return nil, ErrInvalidCapacity
	}
	if in.Status == "" {
		in.Status = model.CampaignStatusDraft
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if _, err := s.instances.GetByID(ctx, in.InstanceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}

	autoCreate := true
	if in.AutoCreateGroups != nil {
		autoCreate = *in.AutoCreateGroups
	}

	campaign := &model.Campaign{
		OwnerID:            ownerID,
		InstanceID:         in.InstanceID,
		Name:               strings.TrimSpace(in.Name),
		GroupNameTemplate:  in.GroupNameTemplate,
		GroupDescription:   in.GroupDescription,
		GroupImageURL:      in.GroupImageURL,
		AdminOnly:          in.AdminOnly,
		MaxMembersPerGroup: in.MaxMembersPerGroup,
		AutoCreateGroups:   autoCreate,
		Status:             in.Status,
	}
	if err := s.insertWithUniqueSlug(ctx, campaign); err != nil {
		return nil, err
	}

	s.recorder.recordOrWarn(ctx, campaign.ID, nil, model.EventCampaignCreated,
		fmt.Sprintf("campaign %q created", campaign.Name),
		map[string]interface{}{"slug": campaign.Slug})
	return campaign, nil
}

// insertWithUniqueSlug tries base, base-1, base-2... The unique index is the
// final arbiter when two creations race for the same candidate.
func (s *campaignService) insertWithUniqueSlug(ctx context.Context, campaign *model.Campaign) error {
	base := Slugify(campaign.Name)
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug := slugCandidate(base, attempt)
		taken, err := s.campaigns.SlugExists(ctx, slug)
		if err != nil {
			return fmt.Errorf("check slug: %w", err)
		}
		if taken {
			continue
		}

		campaign.Slug = slug
		err = s.campaigns.Create(ctx, campaign)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create campaign: %w", err)
		}
		campaign.ID = uuid.Nil
	}
	return ErrSlugExhausted
}

func (s *campaignService) GetCampaign(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return campaign, nil
}

func (s *campaignService) ListCampaigns(ctx context.Context, ownerID uuid.UUID) ([]model.Campaign, error) {
	return s.campaigns.List(ctx, ownerID)
}

func (s *campaignService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) (*model.Campaign, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status == status {
		return campaign, nil
	}

	previous := campaign.Status
	if err := s.campaigns.UpdateFields(ctx, id, map[string]interface{}{"status": status}); err != nil {
		return nil, fmt.Errorf("update campaign status: %w", err)
	}
	campaign.Status = status

	s.recorder.recordOrWarn(ctx, id, nil, model.EventCampaignStatus,
		fmt.Sprintf("status %s -> %s", previous, status),
		map[string]interface{}{"previous": string(previous), "current": string(status)})
	return campaign, nil
}

func (s *campaignService) Stats(ctx context.Context, id uuid.UUID) (*CampaignStats, error) {
	if _, err := s.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	groups, err := s.groups.ListByCampaign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	registered, err := s.members.CountByCampaign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	stats := &CampaignStats{
		CampaignID:        id,
		TotalGroups:       len(groups),
		RegisteredMembers: registered,
	}
	for i := range groups {
		g := &groups[i]
		if g.Status != model.GroupStatusActive {
			continue
		}
		stats.LiveGroups++
		stats.CurrentMembers += g.CurrentMemberCount
		stats.TotalCapacity += g.MaxMembers
		if g.IsActiveForDistribution {
			n := g.GroupNumber
			stats.DistributionGroup = &n
		}
	}
	if stats.TotalCapacity > 0 {
		stats.FillPercent = float64(stats.CurrentMembers) * 100 / float64(stats.TotalCapacity)
	}
	return stats, nil
}

func (s *campaignService) ListGroups(ctx context.Context, campaignID uuid.UUID) ([]model.Group, error) {
	return s.groups.ListByCampaign(ctx, campaignID)
}

func (s *campaignService) CreateGroup(ctx context.Context, campaignID uuid.UUID) (*model.Group, error) {
	campaign, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	instance, err := s.instances.GetByID(ctx, campaign.InstanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}

	hasActive, err := s.groups.HasActiveForDistribution(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("check distribution group: %w", err)
	}
	highest, err := s.groups.MaxGroupNumber(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("next group number: %w", err)
	}

	group, err := s.provisioner.provision(ctx, campaign, instance, highest+1, !hasActive)
	if err != nil {
		return nil, err
	}

	s.recorder.recordOrWarn(ctx, campaign.ID, &group.ID, model.EventGroupCreated,
		fmt.Sprintf("group %d created", group.GroupNumber),
		map[string]interface{}{
			"group_number":      group.GroupNumber,
			"external_group_id": group.ExternalGroupID,
			"distribution":      group.IsActiveForDistribution,
		})
	return group, nil
}

func (s *campaignService) RefreshInviteLink(ctx context.Context, campaignID, groupID uuid.UUID) (*model.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group.CampaignID != campaignID {
		return nil, ErrGroupNotFound
	}
	if group.ExternalGroupID == "" {
		return nil, ErrGroupNotOnGateway
	}
	instance, err := s.instances.GetByID(ctx, group.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}

	link, err := s.gw.GetInviteLink(ctx, instance.Name, group.ExternalGroupID)
	if err != nil {
		return nil, fmt.Errorf("fetch invite link: %w", err)
	}
	if err := s.groups.SetInviteLink(ctx, group.ID, link); err != nil {
		return nil, fmt.Errorf("save invite link: %w", err)
	}
	group.InviteLink = &link

	s.recorder.recordOrWarn(ctx, group.CampaignID, &group.ID, model.EventInviteLinkRefreshed,
		fmt.Sprintf("invite link for group %d refreshed", group.GroupNumber), nil)
	return group, nil
}

func (s *campaignService) ListLogs(ctx context.Context, campaignID uuid.UUID, filter repository.LogFilter) ([]model.Log, error) {
	return s.logs.ListByCampaign(ctx, campaignID, filter)
}
