package domain

import "errors"

var (
	// ErrMalformedMessage is returned when a payload fails to parse or
	// violates a ladder invariant (duplicate price, negative size).
	// The frame is dropped and the stream continues.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrOutOfSequence is returned when an incremental update arrives
	// while the book has no snapshot under it. The book stays not-ready
	// until a fresh snapshot is applied.
	ErrOutOfSequence = errors.New("order book update out of sequence")

	// ErrChecksumMismatch signals that the local book diverged from the
	// exchange. Not fatal: the maintainer reacts by forcing a resync.
	ErrChecksumMismatch = errors.New("order book checksum mismatch")

	ErrOrderBookNotFound = errors.New("order book not found")

	// ErrEmptySide: a query needed a best bid or ask that does not exist.
	ErrEmptySide = errors.New("order book side is empty")

	// ErrInsufficientDepth: the ladder holds less than the quoted size.
	ErrInsufficientDepth = errors.New("insufficient depth for requested size")
)
