package lending

import (
	"math/big"
	"strconv"

	"lendpool/core/types"
	"lendpool/crypto"
)

const (
	EventTypeCollateralChanged  = "lending.collateralChanged"
	EventTypeDebtChanged        = "lending.debtChanged"
	EventTypePositionCleared    = "lending.positionCleared"
	EventTypeDeposit            = "lending.deposit"
	EventTypeWithdraw           = "lending.withdraw"
	EventTypeBorrow             = "lending.borrow"
	EventTypeRepay              = "lending.repay"
	EventTypeFlashLoan          = "lending.flashLoan"
	EventTypeLiquidation        = "lending.liquidation"
	EventTypeRewardsDistributed = "lending.rewardsDistributed"
	EventTypeAssetListed        = "lending.assetListed"
	EventTypePriceUpdated       = "lending.priceUpdated"
)

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newCollateralChangedEvent(pos *CollateralPosition, delta *big.Int, deposit bool) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeCollateralChanged, Attributes: map[string]string{
		"account": pos.Account.String(),
		"asset":   pos.Asset,
		"delta":   bigAttr(delta),
		"deposit": strconv.FormatBool(deposit),
		"balance": bigAttr(pos.Amount),
	}}}
}

func newDebtChangedEvent(pos *DebtPosition, delta *big.Int, borrow bool) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeDebtChanged, Attributes: map[string]string{
		"account":   pos.Account.String(),
		"asset":     pos.Asset,
		"delta":     bigAttr(delta),
		"borrow":    strconv.FormatBool(borrow),
		"principal": bigAttr(pos.Principal),
	}}}
}

func newPositionClearedEvent(addr crypto.Address, collateralAsset, debtAsset string) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypePositionCleared, Attributes: map[string]string{
		"account":         addr.String(),
		"collateralAsset": collateralAsset,
		"debtAsset":       debtAsset,
	}}}
}

func newDepositEvent(addr crypto.Address, asset string, amount *big.Int) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeDeposit, Attributes: map[string]string{
		"account": addr.String(),
		"asset":   asset,
		"amount":  bigAttr(amount),
	}}}
}

func newWithdrawEvent(addr crypto.Address, asset string, amount *big.Int) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeWithdraw, Attributes: map[string]string{
		"account": addr.String(),
		"asset":   asset,
		"amount":  bigAttr(amount),
	}}}
}

func newBorrowEvent(addr crypto.Address, collateralAsset, borrowAsset string, amount, fee *big.Int) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeBorrow, Attributes: map[string]string{
		"account":         addr.String(),
		"collateralAsset": collateralAsset,
		"borrowAsset":     borrowAsset,
		"amount":          bigAttr(amount),
		"fee":             bigAttr(fee),
	}}}
}

func newRepayEvent(addr crypto.Address, asset string, amount, fee *big.Int) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeRepay, Attributes: map[string]string{
		"account": addr.String(),
		"asset":   asset,
		"amount":  bigAttr(amount),
		"fee":     bigAttr(fee),
	}}}
}

func newFlashLoanEvent(addr crypto.Address, asset string, amount, fee *big.Int) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeFlashLoan, Attributes: map[string]string{
		"borrower": addr.String(),
		"asset":    asset,
		"amount":   bigAttr(amount),
		"fee":      bigAttr(fee),
	}}}
}

func newLiquidationEvent(liquidator, account crypto.Address, collateralAsset, debtAsset string, repaid, seized, auctioned *big.Int, auctionID uint64) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeLiquidation, Attributes: map[string]string{
		"liquidator":      liquidator.String(),
		"account":         account.String(),
		"collateralAsset": collateralAsset,
		"debtAsset":       debtAsset,
		"repaid":          bigAttr(repaid),
		"seized":          bigAttr(seized),
		"auctioned":       bigAttr(auctioned),
		"auctionId":       strconv.FormatUint(auctionID, 10),
	}}}
}

func newRewardsDistributedEvent(recipient crypto.Address, amount *big.Int) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeRewardsDistributed, Attributes: map[string]string{
		"recipient": recipient.String(),
		"amount":    bigAttr(amount),
	}}}
}

func newAssetListedEvent(asset string, whitelisted bool) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypeAssetListed, Attributes: map[string]string{
		"asset":       asset,
		"whitelisted": strconv.FormatBool(whitelisted),
	}}}
}

func newPriceUpdatedEvent(asset string, price *big.Int) poolEvent {
	return poolEvent{evt: &types.Event{Type: EventTypePriceUpdated, Attributes: map[string]string{
		"asset": asset,
		"price": bigAttr(price),
	}}}
}
