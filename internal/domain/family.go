package domain

import "time"

// SubscriptionTier represents a family's subscription level. The core only
// reads it for feature gating; billing lives elsewhere.
type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "FREE"
	TierPremium      SubscriptionTier = "PREMIUM"
	TierOrganization SubscriptionTier = "ORGANIZATION"
)

// Family groups related user accounts under one subscription.
type Family struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	MemberIDs        []string         `json:"memberIds"`
	CreatorID        string           `json:"creatorId"`
	SubscriptionTier SubscriptionTier `json:"subscriptionTier"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Validate checks required fields after decoding a stored family document.
func (f *Family) Validate() error {
	if f.ID == "" {
		return errMissing("family", "id")
	}
	switch f.SubscriptionTier {
	case TierFree, TierPremium, TierOrganization:
	default:
		return errInvalid("family", "subscriptionTier", string(f.SubscriptionTier))
	}
	return nil
}
