// Package domain содержит сущности и машины состояний Booking Service:
// заявки, платежи, подтвержденные бронирования и записи admin ledger.
package domain

import (
	"errors"
	"fmt"
)

// Kind - замкнутое множество видов ошибок. Транспортный слой выбирает
// HTTP статус по Kind, а не по конкретному значению ошибки.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindGateway        Kind = "gateway"
	KindInfrastructure Kind = "infrastructure"
)

// Error - доменная ошибка со стабильным кодом для клиента.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает по Kind и Code, поэтому копия sentinel с причиной
// (ErrX.Wrap(err)) совпадает с самим sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap возвращает копию ошибки с причиной.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// KindOf возвращает вид ошибки. Всё, что не *Error, считается инфраструктурой.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInfrastructure
}

// Validation создаёт ошибку валидации или конфликта состояния.
func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

// NotFound создаёт ошибку отсутствия сущности в ожидаемом состоянии.
func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

// Forbidden создаёт ошибку прав доступа.
func Forbidden(code, msg string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: msg}
}

// Gateway оборачивает сбой платежного шлюза.
func Gateway(msg string, cause error) *Error {
	return &Error{Kind: KindGateway, Code: "gateway_error", Message: msg, Err: cause}
}

// Infrastructure оборачивает сбой хранилища или брокера.
func Infrastructure(msg string, cause error) *Error {
	return &Error{Kind: KindInfrastructure, Code: "infrastructure_error", Message: msg, Err: cause}
}

// Доменные ошибки.
var (
	ErrRequestNotFound = NotFound("request_not_found", "заявка не найдена")
	ErrPaymentNotFound = NotFound("payment_not_found", "платёж не найден")
	ErrBookingNotFound = NotFound("booking_not_found", "бронирование не найдено")

	ErrForbidden = Forbidden("forbidden", "недостаточно прав для операции")

	ErrInvalidRequest     = Validation("invalid_request", "некорректные данные заявки")
	ErrInvalidAmount      = Validation("invalid_amount", "некорректная сумма")
	ErrRequestNotAccepted = Validation("request_not_accepted", "заявка еще не принята вендором")
	ErrAlreadyPaid        = Validation("already_paid", "заявка уже оплачена")
	ErrPaymentClosed      = Validation("payment_closed", "платёж по заявке закрыт")
	ErrDuplicatePayment   = Validation("duplicate_payment", "платёж по заявке уже существует")

	// ErrVerificationFailed намеренно не раскрывает, что именно не совпало.
	ErrVerificationFailed = Validation("verification_failed", "payment verification failed")
	ErrNotCapturedYet     = Validation("not_captured_yet", "платёж еще не списан шлюзом")
	ErrInvalidSignature   = Validation("invalid_signature", "неверная подпись вебхука")
	ErrInvalidWebhook     = Validation("invalid_webhook", "некорректное тело вебхука")

	ErrPaymentNotCaptured     = Validation("payment_not_captured", "платёж не подтвержден")
	ErrPayoutAlreadyProcessed = Validation("already_processed", "выплата уже проведена")
	ErrAdvanceNotPaid         = Validation("advance_not_paid", "аванс вендору еще не выплачен")
	ErrRequestNotActive       = Validation("request_not_active", "заявка отменена, выплата невозможна")
)
