// Package common — errors.go определяет таксономию ошибок, общую для всех модулей.
// Хранилища оборачивают ошибки драйвера в одну из базовых категорий,
// сервисы и обработчики различают их через errors.Is.
package common

import (
	"errors"
	"fmt"
)

// Базовые категории. Любая ошибка хранилища приводится к одной из них.
var (
	// ErrValidation — некорректный ввод, ничего не сохранено
	ErrValidation = errors.New("некорректные данные")
	// ErrNotFound — код, профиль, товар или заказ не найден
	ErrNotFound = errors.New("не найдено")
	// ErrConflict — нарушено ограничение уникальности
	ErrConflict = errors.New("запись уже существует")
	// ErrTransient — хранилище недоступно или не ответило вовремя; можно повторить
	ErrTransient = errors.New("временная ошибка хранилища")
	// ErrInvariantViolation — пересчитанный баланс не прошёл проверку
	ErrInvariantViolation = errors.New("нарушен инвариант баланса")
)

// Ошибки леджера и корзины
var (
	// ErrInvalidAmount — сумма ноль или отрицательная
	ErrInvalidAmount = fmt.Errorf("%w: сумма должна быть положительной", ErrValidation)
	// ErrInvalidTxType — тип транзакции не CREDIT и не DEBIT
	ErrInvalidTxType = fmt.Errorf("%w: неизвестный тип транзакции", ErrValidation)
	// ErrEmptyCart — оформление пустой корзины
	ErrEmptyCart = fmt.Errorf("%w: корзина пуста", ErrValidation)
)

// Ошибки реферальной программы
var (
	// ErrCodeSpaceExhausted — генератор не нашёл свободный код за отведённое число попыток
	ErrCodeSpaceExhausted = errors.New("не удалось подобрать свободный реферальный код")
	// ErrUnknownProgram — неизвестный вариант программы
	ErrUnknownProgram = fmt.Errorf("%w: неизвестная программа", ErrValidation)
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)

// IsRetryable сообщает, имеет ли смысл повторить операцию целиком.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
