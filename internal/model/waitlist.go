package model

import "time"

// Waitlist order status codes.  The order status is derived from its items:
// cancelled when every item is cancelled, fulfilled when every item is
// fulfilled, otherwise whatever phase the order is in.
const (
    WaitlistOrderPendingPayment     uint8 = 0
    WaitlistOrderPendingFulfillment uint8 = 1
    WaitlistOrderFulfilled          uint8 = 2
    WaitlistOrderCancelled          uint8 = 3
)

// Waitlist item status codes.
const (
    WaitlistItemPendingPayment     uint8 = 0
    WaitlistItemPendingFulfillment uint8 = 1
    WaitlistItemFulfilled          uint8 = 2
    WaitlistItemCancelled          uint8 = 3
)

// WaitlistOrder holds queued demand that could not be satisfied at booking
// time.  ExpireTime bounds how long the items stay eligible for fulfillment.
type WaitlistOrder struct {
    WaitlistID       int64
    OrderNumber      string
    UserID           int64
    Status           uint8
    TotalAmountCents int64
    ItemCount        int
    OrderTime        time.Time
    ExpireTime       time.Time
}

// WaitlistItem is one passenger's queued demand for one inventory key.
// CreatedTime establishes the FIFO fulfillment order.  TicketID stays zero
// until fulfillment materializes the real ticket the item paid for.
type WaitlistItem struct {
    ItemID      int64
    WaitlistID  int64
    PassengerID int64
    Key         InventoryKey
    TicketType  uint8
    PriceCents  int64
    Status      uint8
    TicketID    int64
    CreatedTime time.Time
}

// DeriveWaitlistOrderStatus computes the order status implied by its item
// statuses, falling back to current when the items are mixed.
func DeriveWaitlistOrderStatus(current uint8, items []WaitlistItem) uint8 {
    if len(items) == 0 {
        return current
    }
    allCancelled, allFulfilled := true, true
    for _, it := range items {
        if it.Status != WaitlistItemCancelled {
            allCancelled = false
        }
        if it.Status != WaitlistItemFulfilled && it.Status != WaitlistItemCancelled {
            allFulfilled = false
        }
    }
    switch {
    case allCancelled:
        return WaitlistOrderCancelled
    case allFulfilled:
        return WaitlistOrderFulfilled
    default:
        return current
    }
}
