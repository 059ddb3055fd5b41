package vault

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/Namit1867/NFT-Marketplace/core/types"
	"github.com/Namit1867/NFT-Marketplace/native/common"
)

const (
	EventTypeAssetDeposited             = "vault.asset.deposited"
	EventTypeAssetReleased              = "vault.asset.released"
	EventTypeAssetEmergencyWithdrawn    = "vault.asset.emergency_withdrawn"
	EventTypeCurrencyMoved              = "vault.currency.moved"
	EventTypeCurrencyEmergencyWithdrawn = "vault.currency.emergency_withdrawn"
	EventTypeModeChanged                = "vault.mode.changed"
	EventTypeAuthorizationUpdated       = "vault.authorization.updated"
)

// NewAssetDepositedEvent returns the canonical payload for a custody deposit.
func NewAssetDepositedEvent(rec *CustodyRecord) *types.Event {
	return newCustodyEvent(EventTypeAssetDeposited, rec, nil)
}

// NewAssetReleasedEvent returns the canonical payload for a custody release.
func NewAssetReleasedEvent(rec *CustodyRecord, recipient [20]byte) *types.Event {
	return newCustodyEvent(EventTypeAssetReleased, rec, &recipient)
}

// NewAssetEmergencyWithdrawnEvent returns the payload emitted when the owner
// self-services a withdrawal while paused.
func NewAssetEmergencyWithdrawnEvent(rec *CustodyRecord) *types.Event {
	return newCustodyEvent(EventTypeAssetEmergencyWithdrawn, rec, nil)
}

// NewCurrencyMovedEvent returns the payload for a currency movement through
// the vault.
func NewCurrencyMovedEvent(sender, recipient [20]byte, amount *big.Int, currency Currency, dir Direction) *types.Event {
	direction := "in"
	if dir == DirectionOutgoing {
		direction = "out"
	}
	amt := "0"
	if amount != nil {
		amt = amount.String()
	}
	return &types.Event{
		Type: EventTypeCurrencyMoved,
		Attributes: map[string]string{
			"sender":    hex.EncodeToString(sender[:]),
			"recipient": hex.EncodeToString(recipient[:]),
			"amount":    amt,
			"currency":  currency.String(),
			"direction": direction,
		},
	}
}

// NewCurrencyEmergencyWithdrawnEvent returns the payload for a self-service
// stable balance withdrawal.
func NewCurrencyEmergencyWithdrawnEvent(addr [20]byte, amount *big.Int) *types.Event {
	amt := "0"
	if amount != nil {
		amt = amount.String()
	}
	return &types.Event{
		Type: EventTypeCurrencyEmergencyWithdrawn,
		Attributes: map[string]string{
			"address": hex.EncodeToString(addr[:]),
			"amount":  amt,
		},
	}
}

// NewModeChangedEvent returns the payload for a pause/unpause transition.
func NewModeChangedEvent(mode common.Mode) *types.Event {
	return &types.Event{
		Type:       EventTypeModeChanged,
		Attributes: map[string]string{"mode": mode.String()},
	}
}

// NewAuthorizationUpdatedEvent returns the payload for an authorization-list
// update.
func NewAuthorizationUpdatedEvent(addr [20]byte, ok bool) *types.Event {
	return &types.Event{
		Type: EventTypeAuthorizationUpdated,
		Attributes: map[string]string{
			"address":    hex.EncodeToString(addr[:]),
			"authorized": strconv.FormatBool(ok),
		},
	}
}

func newCustodyEvent(eventType string, rec *CustodyRecord, recipient *[20]byte) *types.Event {
	attrs := make(map[string]string)
	if rec == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeCustodyRecord(rec)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["custodyId"] = hex.EncodeToString(sanitized.ID[:])
	attrs["owner"] = hex.EncodeToString(sanitized.Owner[:])
	attrs["contract"] = hex.EncodeToString(sanitized.Contract[:])
	attrs["tokenId"] = sanitized.TokenID.String()
	attrs["standard"] = sanitized.Standard.String()
	attrs["orderId"] = strconv.FormatUint(sanitized.OrderID, 10)
	attrs["saleKind"] = sanitized.Kind.String()
	if recipient != nil {
		attrs["recipient"] = hex.EncodeToString(recipient[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
