package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrConfigNotFound  = errors.New("campaign config not found")
	ErrAlreadyIssued   = errors.New("reward already issued for customer")
	ErrUnknownCampaign = errors.New("unknown campaign slug")
)
