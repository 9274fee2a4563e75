package service

import "errors"

var (
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignUnavailable  = errors.New("campaign is not accepting registrations")
	ErrGroupNotFound        = errors.New("group not found")
	ErrInstanceNotFound     = errors.New("gateway instance not found")
	ErrNoGroupsAvailable    = errors.New("no groups available")
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrInvalidTemplate      = errors.New("group name template must contain {group_number}")
	ErrInvalidStatus        = errors.New("invalid campaign status")
	ErrInvalidCapacity      = errors.New("group capacity out of range")
	ErrSlugExhausted        = errors.New("could not allocate a unique slug")
	ErrBulkUpdateInProgress = errors.New("bulk update already in progress")
	ErrEmptyBulkUpdate      = errors.New("bulk update has no fields")
	ErrJobNotFound          = errors.New("no bulk update job for campaign")
	ErrGroupNotOnGateway    = errors.New("group has no external id")
)
