package services

import (
	"errors"
	"fmt"
)

// Kind adalah jenis kegagalan yang bisa dibaca mesin. Layer HTTP memetakan Kind ke status code.
type Kind string

const (
	KindInvalidRequest    Kind = "InvalidRequest"
	KindSessionNotFound   Kind = "SessionNotFound"
	KindSessionExpired    Kind = "SessionExpired"
	KindTableNotFound     Kind = "TableNotFound"
	KindStockInsufficient Kind = "StockInsufficient"
	KindOrderNotFound     Kind = "OrderNotFound"
	KindItemNotFound      Kind = "ItemNotFound"
	KindAlreadyPaid       Kind = "AlreadyPaid"
	KindNotYetPaid        Kind = "NotYetPaid"
	KindAlreadyDone       Kind = "AlreadyDone"
	KindItemsNotAllDone   Kind = "ItemsNotAllDone"
	KindAlreadyCompleted  Kind = "AlreadyCompleted"
	KindInvalidTransition Kind = "InvalidTransition"
	KindInvalidSignature  Kind = "InvalidSignature"
	KindNotEditable       Kind = "NotEditable"
	KindUnauthorized      Kind = "Unauthorized"
)

// StockShortage -> item yang stoknya kurang dari permintaan
type StockShortage struct {
	MenuID    uint   `json:"menu_id"`
	MenuName  string `json:"menu_name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockSnapshot -> stok item yang lolos pengecekan, supaya client bisa menawarkan alternatif
type StockSnapshot struct {
	MenuID         uint   `json:"menu_id"`
	MenuName       string `json:"menu_name"`
	AvailableStock int    `json:"available_stock"`
}

// Error adalah kegagalan bisnis yang diharapkan (bukan error infrastruktur)
type Error struct {
	Kind    Kind
	Message string

	StockErrors    []StockShortage
	AvailableItems []StockSnapshot
	PendingItemIDs []uint
	CurrentStatus  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is membandingkan berdasarkan Kind sehingga errors.Is(err, ErrNotYetPaid) bekerja
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrSessionNotFound   = &Error{Kind: KindSessionNotFound, Message: "session not found"}
	ErrSessionExpired    = &Error{Kind: KindSessionExpired, Message: "session expired"}
	ErrTableNotFound     = &Error{Kind: KindTableNotFound, Message: "table not found"}
	ErrStockInsufficient = &Error{Kind: KindStockInsufficient, Message: "some items are out of stock"}
	ErrOrderNotFound     = &Error{Kind: KindOrderNotFound, Message: "order not found"}
	ErrItemNotFound      = &Error{Kind: KindItemNotFound, Message: "order item not found"}
	ErrAlreadyPaid       = &Error{Kind: KindAlreadyPaid, Message: "order is already paid"}
	ErrNotYetPaid        = &Error{Kind: KindNotYetPaid, Message: "order is not paid yet"}
	ErrAlreadyDone       = &Error{Kind: KindAlreadyDone, Message: "item is already done"}
	ErrItemsNotAllDone   = &Error{Kind: KindItemsNotAllDone, Message: "not all items are done"}
	ErrAlreadyCompleted  = &Error{Kind: KindAlreadyCompleted, Message: "order is already completed"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid order state transition"}
	ErrInvalidSignature  = &Error{Kind: KindInvalidSignature, Message: "invalid notification signature"}
	ErrNotEditable       = &Error{Kind: KindNotEditable, Message: "setting is not editable"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "invalid credentials"}
)

func invalidRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(current, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...), CurrentStatus: current}
}

// KindOf -> Kind dari error bisnis, atau "" untuk error lain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError mengembalikan *Error bila err adalah error bisnis
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
