package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/metrics"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
)

// groupProvisioner creates a numbered group on the gateway and records it.
// It is shared by the cascade and manual group creation.
type groupProvisioner struct {
	gw        gateway.Gateway
	groups    repository.GroupRepository
	campaigns repository.CampaignRepository
	recorder  *ActivityRecorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func (p *groupProvisioner) provision(ctx context.Context, campaign *model.Campaign, instance *model.Instance, number int, activate bool) (*model.Group, error) {
	if instance.PhoneNumber == "" {
		return nil, gateway.ErrAdminPhoneRequired
	}

	name := RenderGroupName(campaign.GroupNameTemplate, number)
	externalID, err := p.gw.CreateGroup(ctx, instance.Name, gateway.CreateGroupRequest{
		Name:        name,
		Description: campaign.GroupDescription,
		AdminPhone:  instance.PhoneNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("create group %d on gateway: %w", number, err)
	}
	p.metrics.IncGroupsCreated()

	group := &model.Group{
		CampaignID:              campaign.ID,
		InstanceID:              instance.ID,
		GroupNumber:             number,
		ExternalGroupID:         externalID,
		Name:                    name,
		Description:             campaign.GroupDescription,
		MaxMembers:              campaign.MaxMembersPerGroup,
		IsActiveForDistribution: activate,
		Status:                  model.GroupStatusActive,
	}
	if err := p.groups.Create(ctx, group); err != nil {
		p.logger.Error("group created on gateway but not persisted",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Int("group_number", number),
			zap.String("external_group_id", externalID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("persist group %d: %w", number, err)
	}

	if err := p.campaigns.IncrementGroupCount(ctx, campaign.ID); err != nil {
		p.logger.Warn("increment campaign group counter failed",
			zap.String("campaign_id", campaign.ID.String()), zap.Error(err))
	}

	p.fetchInviteLink(ctx, instance, group)
	p.applyDefaults(ctx, campaign, instance, group)
	return group, nil
}

// fetchInviteLink leaves the link null on failure; the sync loop retries it.
func (p *groupProvisioner) fetchInviteLink(ctx context.Context, instance *model.Instance, group *model.Group) {
	link, err := p.gw.GetInviteLink(ctx, instance.Name, group.ExternalGroupID)
	if err == nil {
		err = p.groups.SetInviteLink(ctx, group.ID, link)
	}
	if err != nil {
		p.logger.Warn("invite link unavailable for new group",
			zap.String("group_id", group.ID.String()),
			zap.Int("group_number", group.GroupNumber),
			zap.Error(err),
		)
		p.recorder.recordOrWarn(ctx, group.CampaignID, &group.ID, model.EventInviteLinkMissing,
			fmt.Sprintf("invite link for group %d not available yet", group.GroupNumber),
			map[string]interface{}{"error": err.Error()})
		return
	}
	group.InviteLink = &link
}

// applyDefaults pushes the campaign picture and send policy to a fresh group.
func (p *groupProvisioner) applyDefaults(ctx context.Context, campaign *model.Campaign, instance *model.Instance, group *model.Group) {
	fields := map[string]interface{}{}

	if campaign.AdminOnly {
		if err := p.gw.UpdateAdminOnlySetting(ctx, instance.Name, group.ExternalGroupID, true); err != nil {
			p.logger.Warn("apply admin-only setting failed", zap.String("group_id", group.ID.String()), zap.Error(err))
		} else {
			fields["admin_only"] = true
			group.AdminOnly = true
		}
	}
	if campaign.GroupImageURL != "" {
		if err := p.gw.UpdatePicture(ctx, instance.Name, group.ExternalGroupID, campaign.GroupImageURL); err != nil {
			p.logger.Warn("apply group picture failed", zap.String("group_id", group.ID.String()), zap.Error(err))
		} else {
			fields["image_url"] = campaign.GroupImageURL
			group.ImageURL = campaign.GroupImageURL
		}
	}

	if len(fields) == 0 {
		return
	}
	if err := p.groups.UpdateFields(ctx, group.ID, fields); err != nil {
		p.logger.Warn("persist group defaults failed", zap.String("group_id", group.ID.String()), zap.Error(err))
	}
}
