package knn

import "errors"

var (
	// ErrInvalidK is returned when k is below 1 or exceeds the number of
	// eligible bank columns.
	ErrInvalidK = errors.New("knn: invalid k")

	// ErrInvalidTemperature is returned when the temperature is not positive.
	ErrInvalidTemperature = errors.New("knn: temperature must be positive")

	// ErrInvalidClasses is returned when fewer than two classes are configured.
	ErrInvalidClasses = errors.New("knn: classes must be greater than 1")

	// ErrEmptyBank is returned when classifying against a bank without columns.
	ErrEmptyBank = errors.New("knn: feature bank is empty")

	// ErrLabelOutOfRange is returned when a bank label is outside [0, classes).
	ErrLabelOutOfRange = errors.New("knn: label out of range")
)
