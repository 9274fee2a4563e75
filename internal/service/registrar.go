package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"groupflow/distributor/internal/metrics"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
	"groupflow/distributor/pkg/phone"
)

type Resolution struct {
	Campaign   *model.Campaign
	Group      *model.Group
	InviteLink string
}

type RegisterInput struct {
	Slug    string
	Phone   string
	Name    string
	Channel string
}

type Registration struct {
	Member            *model.Member
	Group             *model.Group
	InviteLink        string
	AlreadyRegistered bool
}

// Registrar routes public signups to the campaign's distribution group.
type Registrar interface {
	Resolve(ctx context.Context, slug string) (*Resolution, error)
	Register(ctx context.Context, in RegisterInput) (*Registration, error)
}

type registrar struct {
	campaigns     repository.CampaignRepository
	groups        repository.GroupRepository
	members       repository.MemberRepository
	recorder      *ActivityRecorder
	metrics       *metrics.Metrics
	logger        *zap.Logger
	defaultRegion string
	// onGroupFilled runs when a registration fills the distribution group.
	onGroupFilled func()
}

var _ Registrar = (*registrar)(nil)

type RegistrarOption func(*registrar)

// WithGroupFilledHook lets the registrar ask for an early cascade instead of
// waiting for the next sync tick.
func WithGroupFilledHook(fn func()) RegistrarOption {
	return func(r *registrar) { r.onGroupFilled = fn }
}

func NewRegistrar(
	campaigns repository.CampaignRepository,
	groups repository.GroupRepository,
	members repository.MemberRepository,
	recorder *ActivityRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
	defaultRegion string,
	opts ...RegistrarOption,
) Registrar {
	r := &registrar{
		campaigns:     campaigns,
		groups:        groups,
		members:       members,
		recorder:      recorder,
		metrics:       m,
		logger:        logger,
		defaultRegion: defaultRegion,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *registrar) activeCampaign(ctx context.Context, slug string) (*model.Campaign, error) {
	campaign, err := r.campaigns.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign by slug: %w", err)
	}
	if campaign.Status != model.CampaignStatusActive {
		return nil, ErrCampaignUnavailable
	}
	return campaign, nil
}

// Resolve picks the group a new signup would join. A group without an
// invite link is not ready to receive anyone.
func (r *registrar) Resolve(ctx context.Context, slug string) (*Resolution, error) {
	campaign, err := r.activeCampaign(ctx, slug)
	if err != nil {
		return nil, err
	}
	return r.resolveGroup(ctx, campaign)
}

func (r *registrar) resolveGroup(ctx context.Context, campaign *model.Campaign) (*Resolution, error) {
	group, err := r.groups.FindActiveForDistribution(ctx, campaign.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoGroupsAvailable
		}
		return nil, fmt.Errorf("find distribution group: %w", err)
	}
	if !group.HasInviteLink() {
		return nil, ErrNoGroupsAvailable
	}

	return &Resolution{Campaign: campaign, Group: group, InviteLink: *group.InviteLink}, nil
}

func (r *registrar) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	campaign, err := r.activeCampaign(ctx, in.Slug)
	if err != nil {
		return nil, err
	}

	number, err := phone.Normalize(in.Phone, r.defaultRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}

	existing, err := r.existingRegistration(ctx, campaign, number)
	if err != nil || existing != nil {
		return existing, err
	}

	res, err := r.resolveGroup(ctx, campaign)
	if err != nil {
		r.metrics.IncRegistration("unavailable")
		return nil, err
	}
	group := res.Group

	member := &model.Member{
		CampaignID:   campaign.ID,
		GroupID:      group.ID,
		Phone:        number,
		Name:         in.Name,
		Channel:      in.Channel,
		Status:       "registered",
		RegisteredAt: time.Now(),
	}
	if err := r.members.Create(ctx, member); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent signup for the same phone.
			return r.existingRegistration(ctx, campaign, number)
		}
		return nil, fmt.Errorf("create member: %w", err)
	}

	// Optimistic; the next sync overwrites the cache with the gateway's count.
	if err := r.groups.IncrementMemberCount(ctx, group.ID); err != nil {
		r.logger.Warn("increment group member count failed",
			zap.String("group_id", group.ID.String()), zap.Error(err))
	} else {
		group.CurrentMemberCount++
	}

	r.recorder.recordOrWarn(ctx, campaign.ID, &group.ID, model.EventMemberRegistered,
		fmt.Sprintf("member registered to group %d", group.GroupNumber),
		map[string]interface{}{
			"member_id":    member.ID.String(),
			"group_number": group.GroupNumber,
			"channel":      in.Channel,
		})
	r.metrics.IncRegistration("created")

	if group.IsFull() && r.onGroupFilled != nil {
		r.onGroupFilled()
	}

	return &Registration{
		Member:     member,
		Group:      group,
		InviteLink: res.InviteLink,
	}, nil
}

// existingRegistration returns nil, nil when the phone has not registered yet.
func (r *registrar) existingRegistration(ctx context.Context, campaign *model.Campaign, number string) (*Registration, error) {
	member, err := r.members.GetByCampaignAndPhone(ctx, campaign.ID, number)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup member: %w", err)
	}

	group, err := r.groups.GetByID(ctx, member.GroupID)
	if err != nil {
		return nil, fmt.Errorf("load member group: %w", err)
	}

	reg := &Registration{Member: member, Group: group, AlreadyRegistered: true}
	if group.HasInviteLink() {
		reg.InviteLink = *group.InviteLink
	}
	r.metrics.IncRegistration("already_registered")
	return reg, nil
}
